package di

import (
	"github.com/roasbeef/clinbox/internal/build"
	"github.com/roasbeef/clinbox/internal/checkpoint"
	"github.com/roasbeef/clinbox/internal/config"
	"github.com/roasbeef/clinbox/internal/mailsource"
	"github.com/roasbeef/clinbox/internal/task"
	"github.com/roasbeef/clinbox/internal/triage"
	"github.com/roasbeef/clinbox/internal/tui"
	"go.uber.org/dig"
)

// App is everything a triage run needs.
type App struct {
	Config      *config.Config
	Logging     *build.Logging
	Source      mailsource.Source
	AI          *AI
	Tasks       *task.Store
	Checkpoints *checkpoint.Store
	Surface     *tui.Surface
}

type appParams struct {
	dig.In

	Config      *config.Config
	Logging     *build.Logging
	Source      mailsource.Source
	AI          *AI
	Tasks       *task.Store
	Checkpoints *checkpoint.Store
	Surface     *tui.Surface
}

func provideApp(p appParams) *App {
	return &App{
		Config:      p.Config,
		Logging:     p.Logging,
		Source:      p.Source,
		AI:          p.AI,
		Tasks:       p.Tasks,
		Checkpoints: p.Checkpoints,
		Surface:     p.Surface,
	}
}

func provideSurface() *tui.Surface {
	return tui.New()
}

// SessionOptions are the per-run overrides of the triage section.
type SessionOptions struct {
	// Fresh discards any saved checkpoint.
	Fresh bool

	// Window replaces triage.window when positive.
	Window int
}

// Session returns a triage session configured from the triage section.
func (a *App) Session(opts SessionOptions) *triage.Session {
	tc := a.Config.Triage()
	if opts.Window > 0 {
		tc.Window = opts.Window
	}

	cfg := triage.SessionConfig{
		Source:      a.Source,
		Analyzer:    a.AI.Analyzer,
		Composer:    a.AI.Composer,
		Tasks:       a.Tasks,
		Checkpoints: a.Checkpoints,
		Surface:     a.Surface,
		Pipeline: triage.PipelineConfig{
			Window:         tc.Window,
			AnalyzeTimeout: tc.AnalyzeTimeout,
			FetchTimeout:   tc.FetchTimeout,
		},
		ActionTimeout:     tc.ActionTimeout,
		ArchiveAfterTask:  tc.ArchiveAfterTask,
		ArchiveAfterReply: tc.ArchiveAfterReply,
		Fresh:             opts.Fresh,
	}

	return triage.NewSession(cfg, a.Logging.Logger(build.SubsystemTriage))
}
