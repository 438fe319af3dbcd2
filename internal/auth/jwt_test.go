package auth

import (
	"testing"
	"time"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestValidateToken(t *testing.T) {
	secret := "test-secret"

	customer := &models.User{ID: uuid.New(), Login: "buyer@example.com", Role: models.RoleCustomer}
	admin := &models.User{ID: uuid.New(), Login: "ops@example.com", Role: models.RoleAdmin}

	mustToken := func(user *models.User, exp time.Duration) string {
		t.Helper()
		token, err := GenerateToken(user, secret, exp)
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		return token
	}

	systemToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: uuid.New(),
		Role:   models.RoleSystem,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign system token: %v", err)
	}

	tests := []struct {
		name     string
		token    string
		secret   string
		wantErr  bool
		wantUser *models.User
	}{
		{
			name:     "customer token",
			token:    mustToken(customer, time.Hour),
			secret:   secret,
			wantUser: customer,
		},
		{
			name:     "admin token",
			token:    mustToken(admin, time.Hour),
			secret:   secret,
			wantUser: admin,
		},
		{
			name:    "wrong secret",
			token:   mustToken(customer, time.Hour),
			secret:  "wrong-secret",
			wantErr: true,
		},
		{
			name:    "expired token",
			token:   mustToken(customer, -time.Hour),
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "tampered token",
			token:   mustToken(customer, time.Hour) + "modified",
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "system role is never issued",
			token:   systemToken,
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "empty token",
			token:   "",
			secret:  secret,
			wantErr: true,
		},
		{
			name:    "malformed token",
			token:   "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9",
			secret:  secret,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if claims.UserID != tt.wantUser.ID {
				t.Errorf("UserID = %v, want %v", claims.UserID, tt.wantUser.ID)
			}
			if claims.Login != tt.wantUser.Login {
				t.Errorf("Login = %v, want %v", claims.Login, tt.wantUser.Login)
			}
			if claims.Role != tt.wantUser.Role {
				t.Errorf("Role = %v, want %v", claims.Role, tt.wantUser.Role)
			}
			if claims.ExpiresAt == nil || claims.IssuedAt == nil {
				t.Error("registered claims are not set")
			}
		})
	}
}

func TestGenerateTokenDefaultsToCustomer(t *testing.T) {
	token, err := GenerateToken(&models.User{ID: uuid.New(), Login: "legacy"}, "s", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := ValidateToken(token, "s")
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Role != models.RoleCustomer {
		t.Errorf("Role = %v, want %v", claims.Role, models.RoleCustomer)
	}
}

func BenchmarkValidateToken(b *testing.B) {
	secret := "test-secret"
	user := &models.User{ID: uuid.New(), Login: "bench@example.com", Role: models.RoleCustomer}
	token, _ := GenerateToken(user, secret, time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ValidateToken(token, secret)
	}
}
