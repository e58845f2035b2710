package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/devrank/internal/domain/model"
	"github.com/okian/devrank/internal/domain/scoring"
)

func job(id string) model.Job {
	return model.Job{JobID: id, Username: "dev-" + id, Mode: scoring.ModeWeightedPercentile}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		q := NewInMemoryQueue(WithCapacity(2))
		ctx := context.Background()

		Convey("it starts empty and open", func() {
			So(q.Len(ctx), ShouldEqual, 0)
			So(q.IsClosed(), ShouldBeFalse)
		})

		Convey("jobs come out in FIFO order", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Enqueue(ctx, job("b")), ShouldBeNil)
			So(q.Len(ctx), ShouldEqual, 2)

			ch := q.Dequeue(ctx)
			So((<-ch).JobID, ShouldEqual, "a")
			So((<-ch).JobID, ShouldEqual, "b")
			So(q.Len(ctx), ShouldEqual, 0)
		})

		Convey("a full queue rejects with ErrFull", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Enqueue(ctx, job("b")), ShouldBeNil)
			So(q.Enqueue(ctx, job("c")), ShouldEqual, ErrFull)
			So(q.Len(ctx), ShouldEqual, 2)
		})

		Convey("a canceled context is rejected", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, job("a")), ShouldEqual, context.Canceled)
		})

		Convey("closing drains queued jobs and then closes the channel", func() {
			So(q.Enqueue(ctx, job("a")), ShouldBeNil)
			So(q.Close(), ShouldBeNil)
			So(q.IsClosed(), ShouldBeTrue)
			So(q.Enqueue(ctx, job("b")), ShouldEqual, ErrClosed)

			var got []string
			timeout := time.After(time.Second)
			ch := q.Dequeue(ctx)
		loop:
			for {
				select {
				case j, ok := <-ch:
					if !ok {
						break loop
					}
					got = append(got, j.JobID)
				case <-timeout:
					break loop
				}
			}
			So(got, ShouldResemble, []string{"a"})
			So(q.Close(), ShouldBeNil)
		})
	})
}

func TestInMemoryQueue_BufferNeverBelowCapacity(t *testing.T) {
	Convey("A buffer smaller than the capacity is raised to it", t, func() {
		q := NewInMemoryQueue(WithCapacity(5), WithBufferSize(1))
		ctx := context.Background()
		for i := 0; i < 5; i++ {
			So(q.Enqueue(ctx, job(fmt.Sprint(i))), ShouldBeNil)
		}
		So(q.Enqueue(ctx, job("x")), ShouldEqual, ErrFull)
	})
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	Convey("Concurrent producers and consumers see every job once", t, func() {
		const producers, perProducer = 8, 50
		q := NewInMemoryQueue(WithCapacity(64))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		seen := make(map[string]int)
		var consumers sync.WaitGroup
		for i := 0; i < 4; i++ {
			consumers.Add(1)
			go func() {
				defer consumers.Done()
				for j := range q.Dequeue(ctx) {
					mu.Lock()
					seen[j.JobID]++
					mu.Unlock()
				}
			}()
		}

		var wg sync.WaitGroup
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for n := 0; n < perProducer; n++ {
					for q.Enqueue(ctx, job(fmt.Sprintf("%d-%d", p, n))) != nil {
						time.Sleep(time.Millisecond)
					}
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)
		consumers.Wait()

		So(len(seen), ShouldEqual, producers*perProducer)
		for _, n := range seen {
			if n != 1 {
				So(n, ShouldEqual, 1)
			}
		}
		So(q.Len(ctx), ShouldEqual, 0)
	})
}
