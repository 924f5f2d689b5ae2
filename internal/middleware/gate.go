package middleware

import (
	"errors"
	"log/slog"

	"townsquare/internal/auth"
	"townsquare/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Request fields carrying credentials.
const (
	AuthorizationHeader = "Authorization"
	RefreshTokenHeader  = "refreshToken"
)

// Fiber locals populated once a request passes the gate.
const (
	LocalUserID    = "userID"
	LocalUserLevel = "userLevel"
	LocalOperation = "operation"
)

// OperationID names one routed operation.
type OperationID string

// Policy is the static access rule of one operation.
type Policy struct {
	// Public operations skip the credential check entirely.
	Public bool
	// Refresh operations read the credential from the refresh field.
	Refresh bool
	// MaxLevel is the least privileged tier allowed; zero allows any tier.
	MaxLevel int
}

// Registry is the operation policy table. It is fixed at construction.
type Registry struct {
	policies map[OperationID]Policy
}

// NewRegistry copies policies into an immutable table.
func NewRegistry(policies map[OperationID]Policy) *Registry {
	out := make(map[OperationID]Policy, len(policies))
	for op, p := range policies {
		out[op] = p
	}
	return &Registry{policies: out}
}

// Policy returns the rule for op. Unknown operations get the strictest
// authenticated rule.
func (r *Registry) Policy(op OperationID) (Policy, bool) {
	p, ok := r.policies[op]
	if !ok {
		return Policy{MaxLevel: models.LevelAdmin}, false
	}
	return p, true
}

// Operations lists the registered operation ids.
func (r *Registry) Operations() []OperationID {
	ops := make([]OperationID, 0, len(r.policies))
	for op := range r.policies {
		ops = append(ops, op)
	}
	return ops
}

// TokenValidator is the part of the token service the gate needs.
type TokenValidator interface {
	Validate(token string) (auth.Identity, error)
	ValidateRefresh(token string) (auth.Identity, error)
}

// Gate enforces the registry in front of every handler.
type Gate struct {
	registry *Registry
	tokens   TokenValidator
}

// NewGate returns a gate over registry using tokens for validation.
func NewGate(registry *Registry, tokens TokenValidator) *Gate {
	return &Gate{registry: registry, tokens: tokens}
}

// Authorize applies the policy of op to the presented credential fields.
// Public operations return a zero Identity.
func (g *Gate) Authorize(op OperationID, authorization, refreshToken string) (auth.Identity, error) {
	policy, _ := g.registry.Policy(op)
	if policy.Public {
		return auth.Identity{}, nil
	}

	credential := authorization
	validate := g.tokens.Validate
	if policy.Refresh {
		credential = refreshToken
		validate = g.tokens.ValidateRefresh
	}
	if auth.StripBearer(credential) == "" {
		return auth.Identity{}, models.ErrMissingCredential
	}

	id, err := validate(credential)
	if err != nil {
		return auth.Identity{}, models.ErrInvalidCredential
	}

	if policy.MaxLevel > 0 && id.Level > policy.MaxLevel {
		return id, models.ErrInsufficientPrivilege
	}
	return id, nil
}

// Require returns the handler guarding op.
func (g *Gate) Require(op OperationID) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalOperation, string(op))

		id, err := g.Authorize(op, c.Get(AuthorizationHeader), c.Get(RefreshTokenHeader))
		switch {
		case err == nil:
		case errors.Is(err, models.ErrInsufficientPrivilege):
			GateDecisions.WithLabelValues(string(op), "forbidden").Inc()
			Logger.WarnContext(c.UserContext(), "operation denied for tier",
				slog.String("operation", string(op)),
				slog.Int("level", id.Level),
			)
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Insufficient privilege"))
		default:
			// Missing and invalid credentials answer identically.
			GateDecisions.WithLabelValues(string(op), "denied").Inc()
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		if id.Subject == "" {
			GateDecisions.WithLabelValues(string(op), "public").Inc()
			return c.Next()
		}

		GateDecisions.WithLabelValues(string(op), "allowed").Inc()
		c.Locals(LocalUserID, id.Subject)
		c.Locals(LocalUserLevel, id.Level)
		c.SetUserContext(WithUserID(c.UserContext(), id.Subject))
		return c.Next()
	}
}

// IdentityFrom returns the identity the gate stored for this request.
func IdentityFrom(c *fiber.Ctx) (auth.Identity, bool) {
	subject, ok := c.Locals(LocalUserID).(string)
	if !ok || subject == "" {
		return auth.Identity{}, false
	}
	level, _ := c.Locals(LocalUserLevel).(int)
	return auth.Identity{Subject: subject, Level: level}, true
}
