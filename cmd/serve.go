package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach-cli/internal/dispatch"
	"github.com/sells-group/outreach-cli/internal/harvest"
	"github.com/sells-group/outreach-cli/internal/job"
	"github.com/sells-group/outreach-cli/internal/record"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP control server",
	Long:  "Exposes harvest and dispatch control over HTTP plus a live progress stream, for driving the engine from a dashboard instead of the terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(ctx, env),
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// newRouter wires the API. Jobs started over HTTP run under the serve
// context, not the request context, so they outlive the request.
func newRouter(ctx context.Context, env *outreachEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/events", handleEvents(env))
		r.Get("/jobs", func(w http.ResponseWriter, _ *http.Request) {
			respondJSON(w, http.StatusOK, env.Jobs.Status())
		})

		r.Post("/harvest/start", handleHarvestStart(ctx, env))
		r.Post("/harvest/stop", handleJobStop(env, job.KindHarvest))
		r.Post("/dispatch/start", handleDispatchStart(ctx, env))
		r.Post("/dispatch/resume", handleDispatchResume(ctx, env))
		r.Post("/dispatch/stop", handleJobStop(env, job.KindDispatch))

		r.Get("/records", handleRecordsList(env))
		r.Get("/checkpoints", func(w http.ResponseWriter, req *http.Request) {
			cps, err := env.Checkpoints.List(req.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, cps)
		})
		r.Get("/campaigns", func(w http.ResponseWriter, req *http.Request) {
			camps, err := env.Campaigns.List(req.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, camps)
		})
		r.Get("/campaigns/{id}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "id")
			camp, err := env.Campaigns.Get(req.Context(), id)
			if err != nil {
				respondError(w, http.StatusNotFound, err)
				return
			}
			logs, err := env.Campaigns.Logs(req.Context(), id)
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, map[string]any{"campaign": camp, "log": logs})
		})
		r.Get("/suppressed", func(w http.ResponseWriter, req *http.Request) {
			entries, err := env.Suppressed.List(req.Context())
			if err != nil {
				respondError(w, http.StatusInternalServerError, err)
				return
			}
			respondJSON(w, http.StatusOK, entries)
		})
	})

	return r
}

// handleEvents streams bus events as server-sent events until the client
// disconnects.
func handleEvents(env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			respondError(w, http.StatusInternalServerError, eris.New("streaming unsupported"))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher.Flush()

		ch, cancel := env.Bus.Subscribe()
		defer cancel()

		for {
			select {
			case <-req.Context().Done():
				return
			case e := <-ch:
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, data)
				flusher.Flush()
			}
		}
	}
}

func handleHarvestStart(ctx context.Context, env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Category   string `json:"category"`
			Location   string `json:"location"`
			MaxResults int    `json:"max_results"`
			Resume     bool   `json:"resume"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		if body.Category == "" || body.Location == "" {
			respondError(w, http.StatusBadRequest, eris.New("category and location are required"))
			return
		}
		maxResults := body.MaxResults
		if maxResults == 0 {
			maxResults = cfg.Harvest.MaxResults
		}
		params := harvest.Params{
			Category:    body.Category,
			Location:    body.Location,
			MaxResults:  maxResults,
			Resume:      body.Resume,
			Requirement: cfg.Harvest.Contact,
		}

		desc := fmt.Sprintf("%s in %s", params.Category, params.Location)
		_, err := env.Jobs.Start(ctx, job.KindHarvest, desc, func(jobCtx context.Context) error {
			return env.Harvester.Run(jobCtx, params)
		})
		if err != nil {
			respondError(w, http.StatusConflict, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func handleDispatchStart(ctx context.Context, env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Name      string `json:"name"`
			Message   string `json:"message"`
			Category  string `json:"category"`
			Location  string `json:"location"`
			Limit     int    `json:"limit"`
			DelaySecs *int   `json:"delay_secs"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
			return
		}
		if body.Name == "" || body.Message == "" {
			respondError(w, http.StatusBadRequest, eris.New("name and message are required"))
			return
		}
		delay := cfg.Dispatch.Delay()
		if body.DelaySecs != nil {
			delay = time.Duration(*body.DelaySecs) * time.Second
		}
		params := dispatch.StartParams{
			Name:     body.Name,
			Template: body.Message,
			Filter:   record.Filter{Category: body.Category, Location: body.Location, Limit: body.Limit},
			Delay:    delay,
		}

		_, err := env.Jobs.Start(ctx, job.KindDispatch, body.Name, func(jobCtx context.Context) error {
			_, err := env.Dispatcher.Start(jobCtx, params)
			return err
		})
		if err != nil {
			respondError(w, http.StatusConflict, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}

func handleDispatchResume(ctx context.Context, env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			CampaignID string `json:"campaign_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.CampaignID == "" {
			respondError(w, http.StatusBadRequest, eris.New("campaign_id is required"))
			return
		}
		_, err := env.Jobs.Start(ctx, job.KindDispatch, body.CampaignID, func(jobCtx context.Context) error {
			return env.Dispatcher.Resume(jobCtx, body.CampaignID)
		})
		if err != nil {
			respondError(w, http.StatusConflict, err)
			return
		}
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "resumed"})
	}
}

func handleJobStop(env *outreachEnv, kind job.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !env.Jobs.Stop(kind) {
			respondError(w, http.StatusNotFound, eris.Errorf("no running %s job", kind))
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	}
}

func handleRecordsList(env *outreachEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := record.Filter{
			Category: q.Get("category"),
			Location: q.Get("location"),
			Limit:    queryInt(q.Get("limit")),
			Offset:   queryInt(q.Get("offset")),
		}
		records, err := env.Records.List(req.Context(), filter)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		total, err := env.Records.Count(req.Context(), filter)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"records": records, "total": total})
	}
}

func queryInt(s string) int {
	var n int
	fmt.Sscanf(s, "%d", &n)
	return n
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
