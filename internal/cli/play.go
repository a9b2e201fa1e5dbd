package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Syxd09/code-byte-sub000/internal/config"
	"github.com/Syxd09/code-byte-sub000/internal/domain"
	filestore "github.com/Syxd09/code-byte-sub000/internal/infra/file"
	"github.com/Syxd09/code-byte-sub000/internal/infra/postgres"
	redisstore "github.com/Syxd09/code-byte-sub000/internal/infra/redis"
	"github.com/Syxd09/code-byte-sub000/internal/session"
	"github.com/Syxd09/code-byte-sub000/internal/transport/rest"
	"github.com/Syxd09/code-byte-sub000/internal/transport/ws"
)

type playFlags struct {
	gameCode   string
	name       string
	answerMode string
	fresh      bool
}

// NewPlayCmd joins (or resumes) a game and runs the session until it ends.
func NewPlayCmd(configPath *string) *cobra.Command {
	flags := playFlags{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a game and play it to the end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runPlay(cmd.Context(), cfg, flags)
		},
	}
	cmd.Flags().StringVar(&flags.gameCode, "game-code", "", "six character game code")
	cmd.Flags().StringVar(&flags.name, "name", "", "display name")
	cmd.Flags().StringVar(&flags.answerMode, "answer-mode", "first-option", "first-option or observe")
	cmd.Flags().BoolVar(&flags.fresh, "fresh", false, "ignore any stored session and join anew")
	return cmd
}

func runPlay(parent context.Context, cfg config.Config, flags playFlags) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildStore(cfg, flags)
	if err != nil {
		return err
	}
	api := rest.NewClient(cfg.Server.BaseURL, config.Duration(cfg.Server.Timeout, 10*time.Second))

	cred, identity, err := establishSession(ctx, api, store, flags)
	if err != nil {
		return err
	}
	log.Info().
		Str("game_code", cred.GameCode).
		Str("participant", identity.DisplayName).
		Msg("session ready")

	conn := ws.NewClient(ws.Config{
		URL:         cfg.Server.WSURL,
		BackoffBase: config.Duration(cfg.Connect.BackoffBase, 2*time.Second),
		MaxAttempts: cfg.Connect.MaxAttempts,
	}, ws.JoinRoom{
		GameCode:      cred.GameCode,
		ParticipantID: cred.ParticipantID,
		Role:          "participant",
	}, nil)
	defer conn.Close()

	engine := session.NewEngine(api, conn, store, cred, session.WithNotifier(consoleNotifier{}))

	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx) }()

	watch := time.NewTicker(500 * time.Millisecond)
	defer watch.Stop()

	var (
		lastQuestion  string
		lastRemaining = -1
	)
	for {
		select {
		case err := <-runErr:
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return finish(parent, cfg, cred.GameCode, engine.Snapshot())

		case <-watch.C:
			snap := engine.Snapshot()
			if snap.Question != nil && snap.Question.ID != lastQuestion {
				lastQuestion = snap.Question.ID
				lastRemaining = -1
				printQuestion(snap.Question)
				if flags.answerMode == "first-option" {
					autoAnswer(ctx, engine, snap.Question)
				}
			}
			if snap.Question != nil && !snap.Revealed && snap.Remaining != lastRemaining {
				lastRemaining = snap.Remaining
				fmt.Printf("\r%3ds remaining  [%s]", snap.Remaining, snap.AnswerState)
			}
			if snap.Revealed && snap.Verdict != nil && lastRemaining != -2 {
				lastRemaining = -2
				fmt.Printf("\nanswered: correct=%v score=%d rank=%d\n",
					snap.Verdict.Correct, snap.Verdict.ScoreEarned, snap.Identity.CurrentRank)
			}
		}
	}
}

// establishSession resumes from the stored credential when one exists,
// otherwise performs a fresh join and persists the result.
func establishSession(ctx context.Context, api *rest.Client, store session.CredentialStore, flags playFlags) (domain.SessionCredential, domain.ParticipantIdentity, error) {
	if !flags.fresh {
		cred, identity, found, err := store.Load(ctx)
		if err != nil {
			return domain.SessionCredential{}, domain.ParticipantIdentity{}, err
		}
		if found && cred.Valid() {
			if flags.gameCode == "" || flags.gameCode == cred.GameCode {
				log.Info().Str("game_code", cred.GameCode).Msg("resuming stored session")
				return cred, identity, nil
			}
		}
	}

	if flags.gameCode == "" || flags.name == "" {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, errors.New("--game-code and --name are required for a first join")
	}
	result, err := api.Join(ctx, flags.gameCode, flags.name)
	if err != nil {
		return domain.SessionCredential{}, domain.ParticipantIdentity{}, err
	}
	cred := result.Credential()
	if err := store.Save(ctx, cred, result.Participant); err != nil {
		log.Warn().Err(err).Msg("could not persist session credential")
	}
	return cred, result.Participant, nil
}

func buildStore(cfg config.Config, flags playFlags) (session.CredentialStore, error) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		runnerID := flags.name
		if runnerID == "" {
			host, err := os.Hostname()
			if err != nil {
				return nil, err
			}
			runnerID = host
		}
		return redisstore.NewCredentialStore(client, runnerID, config.Duration(cfg.Redis.TTL, 12*time.Hour)), nil
	}
	path := cfg.Session.StorePath
	if path == "" {
		path = filestore.DefaultPath()
	}
	return filestore.NewCredentialStore(path), nil
}

// autoAnswer answers choice questions with their first option so unattended
// runs still exercise the submission path. Other question types stay on the
// expiry auto-submit.
func autoAnswer(ctx context.Context, engine *session.Engine, q *domain.ActiveQuestion) {
	payload, ok := q.Payload.(domain.ChoicePayload)
	if !ok || len(payload.Options) == 0 {
		return
	}
	if err := engine.SubmitAnswer(ctx, payload.Options[0].ID, ""); err != nil {
		log.Warn().Err(err).Msg("auto answer not accepted")
	}
}

func printQuestion(q *domain.ActiveQuestion) {
	fmt.Printf("\n[Q%d] %s (%d marks)\n", q.Order, q.Text, q.Marks)
	if payload, ok := q.Payload.(domain.ChoicePayload); ok {
		for _, opt := range payload.Options {
			fmt.Printf("  %s) %s\n", opt.ID, opt.Text)
		}
	}
}

func finish(ctx context.Context, cfg config.Config, gameCode string, snap session.Snapshot) error {
	if snap.Analytics == nil {
		fmt.Println("\ngame over")
		return nil
	}
	stats := snap.Analytics.Stats
	fmt.Printf("\ngame over: rank %d, score %d (%d correct, %d incorrect, avg %.1fs)\n",
		stats.FinalRank, stats.TotalScore, stats.CorrectCount, stats.IncorrectCount, stats.AvgTimeSeconds)

	if cfg.Postgres.URL == "" {
		return nil
	}
	archiveCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	pool, err := pgxpool.Connect(archiveCtx, cfg.Postgres.URL)
	if err != nil {
		log.Warn().Err(err).Msg("archive database unavailable")
		return nil
	}
	defer pool.Close()
	archive := postgres.NewArchiveStore(pool)
	if err := archive.Save(archiveCtx, gameCode, *snap.Analytics); err != nil {
		log.Warn().Err(err).Msg("could not archive result")
		return nil
	}
	log.Info().Msg("result archived")
	return nil
}

// consoleNotifier surfaces penalties and organiser messages on stderr where
// they stand apart from the question stream.
type consoleNotifier struct{}

func (consoleNotifier) Notify(kind, message string) {
	log.Warn().Str("kind", kind).Msg(message)
}
