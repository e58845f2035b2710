package techstack_test

import (
	"testing"

	"github.com/okian/devrank/internal/domain/techstack"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBreakdown(t *testing.T) {
	Convey("Given language bytes from several repositories", t, func() {
		shares := techstack.Breakdown([]map[string]int64{
			{"Go": 600, "Shell": 100},
			{"Go": 200, "TypeScript": 100},
			{},
		})

		Convey("Then languages are merged and sorted by share", func() {
			So(shares, ShouldHaveLength, 3)
			So(shares[0], ShouldResemble, techstack.LanguageShare{Language: "Go", Bytes: 800, Percent: 80, Repos: 2})
			// Shell and TypeScript tie on bytes and sort by name.
			So(shares[1].Language, ShouldEqual, "Shell")
			So(shares[2].Language, ShouldEqual, "TypeScript")
			So(shares[2].Percent, ShouldEqual, 10)
		})
	})

	Convey("Given no languages", t, func() {
		So(techstack.Breakdown(nil), ShouldBeNil)
		So(techstack.Breakdown([]map[string]int64{{}}), ShouldBeNil)
	})
}

func TestClassify(t *testing.T) {
	Convey("Given a mostly Go developer", t, func() {
		stacks := techstack.Classify([]techstack.LanguageShare{{Language: "Go", Percent: 90}, {Language: "Makefile", Percent: 10}})

		Convey("Then backend leads with full confidence", func() {
			So(stacks[0], ShouldResemble, techstack.Stack{Name: techstack.Backend, Confidence: 100})
		})
	})

	Convey("Given a developer with both frontend and backend languages", t, func() {
		stacks := techstack.Classify([]techstack.LanguageShare{
			{Language: "TypeScript", Percent: 50},
			{Language: "Java", Percent: 50},
		})

		Convey("Then they are reported as full stack", func() {
			So(stacks, ShouldHaveLength, 1)
			So(stacks[0].Name, ShouldEqual, techstack.FullStack)
			So(stacks[0].Confidence, ShouldBeGreaterThanOrEqualTo, 50)
		})
	})

	Convey("Given only unrecognised languages", t, func() {
		stacks := techstack.Classify([]techstack.LanguageShare{{Language: "Brainfuck", Percent: 100}})

		Convey("Then the stack is unknown", func() {
			So(stacks, ShouldResemble, []techstack.Stack{{Name: techstack.Unknown}})
		})
	})

	Convey("Given no languages at all", t, func() {
		So(techstack.Classify(nil), ShouldResemble, []techstack.Stack{{Name: techstack.Unknown}})
	})
}
