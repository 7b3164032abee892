package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	enginex "github.com/warin-t/salesforce-next-best-action/agent/engine"
	executorx "github.com/warin-t/salesforce-next-best-action/agent/executor"
	promptx "github.com/warin-t/salesforce-next-best-action/agent/prompt"
	configx "github.com/warin-t/salesforce-next-best-action/pkg/config"
	geminix "github.com/warin-t/salesforce-next-best-action/pkg/gemini"
	_ "github.com/warin-t/salesforce-next-best-action/pkg/logger/autoload"
	openrouterx "github.com/warin-t/salesforce-next-best-action/pkg/openrouter"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
	serverx "github.com/warin-t/salesforce-next-best-action/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sfCfg := configx.MustNew[salesforcex.Config]("SALESFORCE")
	crm, err := salesforcex.NewClient(*sfCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create salesforce client")
	}
	if err := crm.Login(ctx); err != nil {
		log.Fatal().Err(err).Msg("salesforce login")
	}

	openRouterCfg := configx.MustNew[openrouterx.Config]("OPENROUTER")
	prompts := promptx.LoadPromptSet()

	graphEngine, err := enginex.NewGraphEngine(ctx, openRouterCfg, prompts)
	if err != nil {
		log.Fatal().Err(err).Msg("build graph engine")
	}
	crewEngine, err := enginex.NewCrewEngine(ctx, openRouterCfg, prompts)
	if err != nil {
		log.Fatal().Err(err).Msg("build crew engine")
	}
	groupChatEngine := enginex.NewGroupChatEngine(
		openrouterx.NewClient(*openRouterCfg), openRouterCfg.Model, prompts)

	geminiCfg := configx.MustNew[geminix.Config]("GEMINI")
	gemini, err := geminix.NewClient(ctx, *geminiCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create gemini client")
	}
	directEngine := enginex.NewDirectEngine(gemini, prompts)

	registry := enginex.NewRegistry(graphEngine, crewEngine, groupChatEngine, directEngine)

	srvCfg := configx.MustNew[serverx.Config]("SERVER")
	store := serverx.NewStore(srvCfg.SessionTTL, time.Now)
	exec := executorx.New(crm)
	api := serverx.New(crm, registry, store, exec)
	router := serverx.NewRouter(api, srvCfg.Mode)

	httpSrv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srvCfg.Addr).Msg("dashboard API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
