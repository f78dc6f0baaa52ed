// Package oidc implements authgate's IdentityProvider over OpenID Connect.
// It supports two token shapes: a raw ID token verified directly, and an
// authorization code exchanged through OAuth2 first.
package oidc
