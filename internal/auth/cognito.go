package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cognitosrp "github.com/alexrudd/cognito-srp/v4"
	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
)

// Supported sign-in flows
const (
	AuthFlowSRP      = string(types.AuthFlowTypeUserSrpAuth)
	AuthFlowPassword = string(types.AuthFlowTypeUserPasswordAuth)
)

const defaultCognitoTimeout = 10 * time.Second

// Provider issues access tokens. Both calls return a compact JWT whose
// payload carries an exp claim.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
	Renew(ctx context.Context) (string, error)
}

// cognitoAPI is the subset of the Cognito identity provider client we call
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cip.RespondToAuthChallengeInput, optFns ...func(*cip.Options)) (*cip.RespondToAuthChallengeOutput, error)
}

// CognitoOptions describe the user pool app client to sign in to
type CognitoOptions struct {
	Region     string
	UserPoolID string
	ClientID   string
	AuthFlow   string        // AuthFlowSRP (default) or AuthFlowPassword
	Endpoint   string        // overrides the regional endpoint, for tests
	Timeout    time.Duration // per request, default 10s
}

// CognitoProvider signs in to a Cognito user pool app client with SRP (or
// plain USER_PASSWORD_AUTH when the client allows it) and renews with
// REFRESH_TOKEN_AUTH
type CognitoProvider struct {
	api        cognitoAPI
	userPoolID string
	clientID   string
	authFlow   string
	now        func() time.Time

	mu           sync.Mutex
	refreshToken string
}

// NewCognitoProvider creates a provider for the given user pool app client
func NewCognitoProvider(opts CognitoOptions) *CognitoProvider {
	if opts.Region == "" {
		opts.Region = RegionFromPoolID(opts.UserPoolID)
	}
	if opts.AuthFlow == "" {
		opts.AuthFlow = AuthFlowSRP
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCognitoTimeout
	}

	client := cip.New(cip.Options{
		Region:     opts.Region,
		HTTPClient: &http.Client{Timeout: opts.Timeout},
		// a failed sign-in surfaces on the next scrape
		Retryer: aws.NopRetryer{},
	}, func(o *cip.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &CognitoProvider{
		api:        client,
		userPoolID: opts.UserPoolID,
		clientID:   opts.ClientID,
		authFlow:   opts.AuthFlow,
		now:        time.Now,
	}
}

// RegionFromPoolID returns the region prefix of a user pool id such as
// "us-west-1_9FOe8eHZU"
func RegionFromPoolID(poolID string) string {
	region, _, ok := strings.Cut(poolID, "_")
	if !ok {
		return ""
	}
	return region
}

// Authenticate signs in with username and password and remembers the
// refresh token for later renewals
func (p *CognitoProvider) Authenticate(ctx context.Context, username, password string) (string, error) {
	var (
		result *types.AuthenticationResultType
		err    error
	)
	switch p.authFlow {
	case AuthFlowSRP:
		result, err = p.authenticateSRP(ctx, username, password)
	case AuthFlowPassword:
		result, err = p.authenticatePassword(ctx, username, password)
	default:
		err = &AuthError{Op: "authenticate", Err: fmt.Errorf("unsupported auth flow %q", p.authFlow)}
	}
	if err != nil {
		return "", err
	}

	access, err := accessToken("authenticate", result)
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.refreshToken = aws.ToString(result.RefreshToken)
	p.mu.Unlock()

	return access, nil
}

func (p *CognitoProvider) authenticateSRP(ctx context.Context, username, password string) (*types.AuthenticationResultType, error) {
	csrp, err := cognitosrp.NewCognitoSRP(username, password, p.userPoolID, p.clientID, nil)
	if err != nil {
		return nil, &AuthError{Op: "authenticate", Err: err}
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserSrpAuth,
		ClientId:       aws.String(csrp.GetClientId()),
		AuthParameters: csrp.GetAuthParams(),
	})
	if err != nil {
		return nil, apiError("authenticate", err)
	}
	if out.ChallengeName != types.ChallengeNameTypePasswordVerifier {
		return challengeResult("authenticate", out.ChallengeName, out.AuthenticationResult)
	}

	responses, err := csrp.PasswordVerifierChallenge(out.ChallengeParameters, p.now())
	if err != nil {
		return nil, &AuthError{Op: "authenticate", Err: fmt.Errorf("answering password verifier: %w", err)}
	}

	resp, err := p.api.RespondToAuthChallenge(ctx, &cip.RespondToAuthChallengeInput{
		ChallengeName:      types.ChallengeNameTypePasswordVerifier,
		ChallengeResponses: responses,
		ClientId:           aws.String(csrp.GetClientId()),
		Session:            out.Session,
	})
	if err != nil {
		return nil, apiError("authenticate", err)
	}
	return challengeResult("authenticate", resp.ChallengeName, resp.AuthenticationResult)
}

func (p *CognitoProvider) authenticatePassword(ctx context.Context, username, password string) (*types.AuthenticationResultType, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, apiError("authenticate", err)
	}
	return challengeResult("authenticate", out.ChallengeName, out.AuthenticationResult)
}

// Renew exchanges the stored refresh token for a new access token
func (p *CognitoProvider) Renew(ctx context.Context) (string, error) {
	p.mu.Lock()
	refreshToken := p.refreshToken
	p.mu.Unlock()

	if refreshToken == "" {
		return "", &AuthError{Op: "renew", Err: errors.New("no refresh token, authenticate first")}
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return "", apiError("renew", err)
	}

	result, err := challengeResult("renew", out.ChallengeName, out.AuthenticationResult)
	if err != nil {
		return "", err
	}
	access, err := accessToken("renew", result)
	if err != nil {
		return "", err
	}

	// Cognito only rotates the refresh token when rotation is enabled on the client
	if rt := aws.ToString(result.RefreshToken); rt != "" {
		p.mu.Lock()
		p.refreshToken = rt
		p.mu.Unlock()
	}

	return access, nil
}

func challengeResult(op string, challenge types.ChallengeNameType, result *types.AuthenticationResultType) (*types.AuthenticationResultType, error) {
	if result != nil {
		return result, nil
	}
	if challenge != "" {
		return nil, &AuthError{Op: op, Err: fmt.Errorf("unsupported challenge %s", challenge)}
	}
	return nil, &AuthError{Op: op, Err: errors.New("response has no AuthenticationResult")}
}

func accessToken(op string, result *types.AuthenticationResultType) (string, error) {
	token := aws.ToString(result.AccessToken)
	if token == "" {
		return "", &AuthError{Op: op, Err: errors.New("response has empty access token")}
	}
	return token, nil
}

// apiError wraps an SDK failure, keeping the HTTP status and the Cognito
// error code in the message
func apiError(op string, err error) error {
	ae := &AuthError{Op: op, Err: err}

	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		ae.StatusCode = re.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		ae.Err = fmt.Errorf("%s: %s: %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
	}
	return ae
}
