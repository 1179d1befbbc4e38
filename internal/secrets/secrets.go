// Package secrets resolves credentials that are stored in AWS SSM Parameter
// Store instead of the config file.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Scheme marks a config value as an SSM parameter reference, e.g. "ssm:openai/api_key".
const Scheme = "ssm:"

// ssmAPI is the part of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Getter fetches one decrypted parameter.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client wraps the SSM API.
type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("secrets: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("secrets: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: name is required")
	}
	withDecryption := true
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &name,
		WithDecryption: &withDecryption,
	})
	if err != nil {
		return "", fmt.Errorf("secrets: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("secrets: parameter %q missing value", name)
	}
	return *out.Parameter.Value, nil
}

// IsRef reports whether value points at a parameter.
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), Scheme)
}

// Resolver expands references against a parameter prefix.
type Resolver struct {
	Getter Getter
	// Prefix is joined to relative names, e.g. "/dreambot/prod".
	Prefix string
}

// ParamName returns the absolute parameter name a reference points at.
func (r Resolver) ParamName(ref string) string {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), Scheme))
	if strings.HasPrefix(name, "/") || r.Prefix == "" {
		return name
	}
	return path.Join("/", r.Prefix, name)
}

// Resolve returns value unchanged unless it is a reference.
func (r Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}
	if r.Getter == nil {
		return "", fmt.Errorf("secrets: %q needs an SSM client", value)
	}
	return r.Getter.GetParameter(ctx, r.ParamName(value))
}

// ResolveAll resolves every pointer in place, stopping at the first failure.
func (r Resolver) ResolveAll(ctx context.Context, values ...*string) error {
	for _, v := range values {
		if v == nil {
			continue
		}
		out, err := r.Resolve(ctx, *v)
		if err != nil {
			return err
		}
		*v = out
	}
	return nil
}
