package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"

	"github.com/hitoshi/healthtrack/internal/model"
)

// googleIssuers はGoogleが発行するIDトークンのissとして許可する値。
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// GoogleIdentity は検証済みIDトークンから取り出したGoogleアカウント情報。
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// IDTokenVerifier は外部IdPが発行したIDトークンを検証するインターフェース。
type IDTokenVerifier interface {
	// Verify は署名・audience・issuer・有効期限を検証し、アカウント情報を返す。
	// 検証に失敗した場合はInvalidCredentialエラーを返す。
	Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error)
}

// payloadValidator はidtoken.Validatorの検証部分。テストで差し替える。
type payloadValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleIDTokenVerifier はGoogleの公開鍵でIDトークンを検証する。
// 公開鍵はidtokenパッケージがキャッシュし、期限切れ時に再取得する。
type GoogleIDTokenVerifier struct {
	clientID  string
	validator payloadValidator
}

// NewGoogleIDTokenVerifier はGoogleIDTokenVerifierを生成する。
// clientIDはGoogle OAuthクライアントIDで、トークンのaudienceと一致する必要がある。
func NewGoogleIDTokenVerifier(ctx context.Context, clientID string, httpClient *http.Client) (*GoogleIDTokenVerifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	v, err := idtoken.NewValidator(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}

	return &GoogleIDTokenVerifier{clientID: clientID, validator: v}, nil
}

// Verify はIDトークンを検証する。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, rawIDToken string) (*GoogleIdentity, error) {
	rawIDToken = strings.TrimSpace(rawIDToken)
	if rawIDToken == "" {
		return nil, model.NewInvalidCredentialError("token is empty")
	}

	payload, err := v.validator.Validate(ctx, rawIDToken, v.clientID)
	if err != nil {
		return nil, model.NewInvalidCredentialError(err.Error())
	}

	return identityFromPayload(payload)
}

// identityFromPayload は検証済みペイロードからGoogleIdentityを組み立てる。
func identityFromPayload(p *idtoken.Payload) (*GoogleIdentity, error) {
	if !googleIssuers[p.Issuer] {
		return nil, model.NewInvalidCredentialError("unexpected issuer " + p.Issuer)
	}
	if p.Subject == "" {
		return nil, model.NewInvalidCredentialError("missing subject")
	}

	email, _ := p.Claims["email"].(string)
	if email == "" {
		return nil, model.NewInvalidCredentialError("missing email claim")
	}
	if verified, ok := p.Claims["email_verified"].(bool); ok && !verified {
		return nil, model.NewInvalidCredentialError("email is not verified")
	}

	name, _ := p.Claims["name"].(string)

	return &GoogleIdentity{
		Subject: p.Subject,
		Email:   strings.ToLower(email),
		Name:    name,
	}, nil
}

// compile-time interface check
var _ IDTokenVerifier = (*GoogleIDTokenVerifier)(nil)
