package loadtest

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/devrank/internal/domain/scoring"
)

// developer is one synthetic score request.
type developer struct {
	scoring.MetricsInput
	Mode  scoring.Mode         `json:"mode"`
	Repos []scoring.RepoSignal `json:"repos,omitempty"`
	Save  bool                 `json:"save"`
}

// tiers scale the default medians; the first entries are the most common.
var tiers = []struct{ lo, hi float64 }{
	{0.5, 1.5},
	{0.5, 1.5},
	{0.1, 0.5},
	{1.5, 3},
	{3, 6},
	{0, 0.1},
}

var repoNames = []string{"DevRank", "toolkit", "GoServer", "dotfiles", "DataPipe", "notes"}

func generate(cfg Config) []developer {
	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	devs := make([]developer, cfg.Developers)
	for i := range devs {
		mode := cfg.Modes[i%len(cfg.Modes)]
		d := developer{
			MetricsInput: activity(r, "load-"+uuid.NewString()),
			Mode:         mode,
			Save:         true,
		}
		if mode == scoring.ModePointThreshold {
			d.Repos = repos(r)
		}
		devs[i] = d
	}
	return devs
}

func activity(r *rand.Rand, username string) scoring.MetricsInput {
	t := tiers[r.IntN(len(tiers))]
	scale := func(median float64) int64 {
		return int64(median * (t.lo + r.Float64()*(t.hi-t.lo)))
	}
	return scoring.MetricsInput{
		Username:  username,
		Commits:   scale(1000),
		Pulls:     scale(50),
		Issues:    scale(25),
		Reviews:   scale(2),
		Stars:     scale(50),
		Followers: scale(10),
		Forks:     scale(5),
	}
}

func repos(r *rand.Rand) []scoring.RepoSignal {
	out := make([]scoring.RepoSignal, 1+r.IntN(4))
	for i := range out {
		out[i] = scoring.RepoSignal{
			Name:         repoNames[r.IntN(len(repoNames))],
			Contributors: int64(1 + r.IntN(5)),
			HasReadme:    r.IntN(2) == 0,
			Commits:      int64(r.IntN(40)),
		}
	}
	return out
}
