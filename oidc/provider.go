package oidc

import (
	"context"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/veldtlabs/authgate"
)

// Config carries the relying-party settings for one OIDC issuer.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	// ExchangeCode treats provider tokens as authorization codes and runs
	// the OAuth2 code exchange before ID-token verification. When false,
	// provider tokens are raw ID tokens.
	ExchangeCode bool
}

// Provider verifies provider tokens against one OIDC issuer and maps the
// asserted claims to a [authgate.FederatedIdentity]. Safe for concurrent use.
type Provider struct {
	config       Config
	verifier     *gooidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// New discovers the issuer and builds a Provider.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID required")
	}

	provider, err := gooidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}

	verifier := provider.Verifier(&gooidc.Config{
		ClientID: cfg.ClientID,
	})

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", "profile"}
	}

	return &Provider{
		config:   cfg,
		verifier: verifier,
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// AuthCodeURL returns the authorization URL a login surface redirects to
// when using the code-exchange shape.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

type identityClaims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// ExchangeToken verifies providerToken and returns the identity snapshot.
// Implements [authgate.IdentityProvider].
func (p *Provider) ExchangeToken(ctx context.Context, providerToken string) (authgate.FederatedIdentity, error) {
	rawIDToken := providerToken

	if p.config.ExchangeCode {
		oauth2Token, err := p.oauth2Config.Exchange(ctx, providerToken)
		if err != nil {
			return authgate.FederatedIdentity{}, fmt.Errorf("code exchange failed: %w", err)
		}
		extracted, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			return authgate.FederatedIdentity{}, errors.New("missing id_token in token response")
		}
		rawIDToken = extracted
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return authgate.FederatedIdentity{}, fmt.Errorf("id token verification failed: %w", err)
	}

	var claims identityClaims
	if err := idToken.Claims(&claims); err != nil {
		return authgate.FederatedIdentity{}, fmt.Errorf("claim parsing failed: %w", err)
	}
	if claims.Subject == "" {
		return authgate.FederatedIdentity{}, errors.New("id token missing subject")
	}

	return authgate.FederatedIdentity{
		ProviderSubjectID: claims.Subject,
		Email:             claims.Email,
		DisplayName:       claims.Name,
		PhotoRef:          claims.Picture,
	}, nil
}
