// Package bootstrap performs the one-time startup sequence: authenticate,
// discover the premise and build the collector.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgoulah/gridexporter/internal/auth"
	"github.com/jgoulah/gridexporter/internal/collector"
	"github.com/jgoulah/gridexporter/internal/config"
	"github.com/jgoulah/gridexporter/internal/nep"
)

// Exporter is everything a command needs after startup
type Exporter struct {
	Tokens    *auth.TokenCache
	Client    *nep.Client
	PremiseID string
	Premises  []string // every premise id on the account, sorted
	Collector *collector.Collector
}

// NewProvider builds the Cognito identity provider described by cfg
func NewProvider(cfg *config.Config) auth.Provider {
	return auth.NewCognitoProvider(auth.CognitoOptions{
		Region:     cfg.Cognito.Region,
		UserPoolID: cfg.Cognito.UserPoolID,
		ClientID:   cfg.Cognito.ClientID,
		AuthFlow:   cfg.Cognito.AuthFlow,
		Timeout:    cfg.API.Timeout,
	})
}

// NewClient builds the NEP API client described by cfg
func NewClient(cfg *config.Config) *nep.Client {
	return nep.NewClient(cfg.API.AccountURL, cfg.API.UsageURL, cfg.API.Timeout)
}

// Run authenticates, picks the premise and wires the collector. Any error
// is fatal to the caller: without a credential and premise there is nothing
// to export.
func Run(ctx context.Context, cfg *config.Config, provider auth.Provider, client *nep.Client) (*Exporter, error) {
	services, err := cfg.ServiceList()
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenCache(provider)
	if _, err := tokens.Initialize(ctx, cfg.Cognito.Username, cfg.Cognito.Password); err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}

	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting access token: %w", err)
	}

	acc, err := client.FetchAccount(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	premiseID, err := acc.SelectPremise()
	if err != nil {
		return nil, fmt.Errorf("selecting premise: %w", err)
	}

	premises := acc.PremiseIDs()
	if len(premises) > 1 {
		slog.Warn("bootstrap: account has several premises, exporting only one", "premise", premiseID, "premises", premises)
	}
	slog.Info("bootstrap: using premise", "premise", premiseID)

	coll := collector.New(tokens, client, premiseID, collector.Options{
		Services:    services,
		HistoryDays: cfg.API.HistoryDays,
		Frequency:   cfg.API.Frequency,
	})

	return &Exporter{
		Tokens:    tokens,
		Client:    client,
		PremiseID: premiseID,
		Premises:  premises,
		Collector: coll,
	}, nil
}
