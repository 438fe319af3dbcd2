package auth

import (
	"fmt"

	"github.com/agamariel/orderflow/internal/models"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Ресурсы политики доступа.
const (
	ResourceOrder       = "order"
	ResourceRequest     = "request"
	ResourceRestoration = "restoration"
)

// Действия политики доступа.
const (
	ActionCreate     = "create"
	ActionRead       = "read"
	ActionList       = "list"
	ActionTransition = "transition"
	ActionDelete     = "delete"
	ActionRefund     = "refund"
	ActionPurge      = "purge"
	ActionSubmit     = "submit"
	ActionDecide     = "decide"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// defaultRules — какие операции доступны каждой роли.
var defaultRules = [][]string{
	{string(models.RoleCustomer), ResourceOrder, ActionCreate},
	{string(models.RoleCustomer), ResourceOrder, ActionRead},
	{string(models.RoleCustomer), ResourceOrder, ActionList},
	{string(models.RoleCustomer), ResourceOrder, ActionDelete},
	{string(models.RoleCustomer), ResourceRequest, ActionSubmit},
	{string(models.RoleCustomer), ResourceRestoration, ActionSubmit},

	{string(models.RoleAdmin), ResourceOrder, ActionRead},
	{string(models.RoleAdmin), ResourceOrder, ActionList},
	{string(models.RoleAdmin), ResourceOrder, ActionTransition},
	{string(models.RoleAdmin), ResourceOrder, ActionDelete},
	{string(models.RoleAdmin), ResourceOrder, ActionRefund},
	{string(models.RoleAdmin), ResourceRequest, ActionList},
	{string(models.RoleAdmin), ResourceRequest, ActionDecide},
	{string(models.RoleAdmin), ResourceRestoration, ActionDecide},

	{string(models.RoleSystem), ResourceOrder, ActionList},
	{string(models.RoleSystem), ResourceOrder, ActionPurge},
}

// Policy проверяет право роли на операцию через casbin.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy создаёт политику с правилами по умолчанию.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize enforcer: %w", err)
	}

	if _, err := enforcer.AddPolicies(defaultRules); err != nil {
		return nil, fmt.Errorf("failed to load policy rules: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

// Allowed сообщает, разрешено ли роли действие над ресурсом.
func (p *Policy) Allowed(role models.Role, resource, action string) (bool, error) {
	allowed, err := p.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}
