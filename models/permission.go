package models

import (
	"context"

	"github.com/karibu/produce_backend/utils"
)

type Operation string

const (
	OpCreateProcurement Operation = "procurement.create"
	OpUpdateProcurement Operation = "procurement.update"
	OpDeleteProcurement Operation = "procurement.delete"
	OpListProcurements  Operation = "procurement.list"
	OpCreateSale        Operation = "sale.create"
	OpUpdateSale        Operation = "sale.update"
	OpDeleteSale        Operation = "sale.delete"
	OpListSales         Operation = "sale.list"
	OpGetReceipt        Operation = "sale.receipt"
	OpGetStock          Operation = "stock.read"
	OpOverrideStock     Operation = "stock.override"
	OpListProduce       Operation = "produce.list"
	OpCreateProduce     Operation = "produce.create"
	OpViewAnalytics     Operation = "analytics.view"
	OpRunReconciliation Operation = "stock.reconcile"
	OpRegisterUser      Operation = "user.register"
	OpListUsers         Operation = "user.list"
)

var (
	allRoles     = []UserRole{UserRoleAgent, UserRoleManager, UserRoleCEO}
	agentOnly    = []UserRole{UserRoleAgent}
	managerOrCEO = []UserRole{UserRoleManager, UserRoleCEO}
)

var operationRoles = map[Operation][]UserRole{
	OpCreateProcurement: agentOnly,
	OpUpdateProcurement: agentOnly,
	OpDeleteProcurement: agentOnly,
	OpCreateSale:        agentOnly,
	OpUpdateSale:        agentOnly,
	OpDeleteSale:        agentOnly,

	OpListProcurements: allRoles,
	OpListSales:        allRoles,
	OpGetReceipt:       allRoles,
	OpGetStock:         allRoles,
	OpListProduce:      allRoles,

	OpOverrideStock:     managerOrCEO,
	OpCreateProduce:     managerOrCEO,
	OpViewAnalytics:     managerOrCEO,
	OpRunReconciliation: managerOrCEO,
	OpListUsers:         managerOrCEO,

	OpRegisterUser: {UserRoleCEO},
}

// RoleAllowed reports whether role may perform op. Unknown operations are denied.
func RoleAllowed(role UserRole, op Operation) bool {
	for _, r := range operationRoles[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Authorize checks the actor on ctx against the allow-list for op.
func Authorize(ctx context.Context, op Operation) error {
	role, ok := utils.GetRoleFromContext(ctx)
	if !ok || role == "" {
		return utils.NewForbiddenError("forbidden")
	}
	if !RoleAllowed(UserRole(role), op) {
		return utils.NewForbiddenError("forbidden")
	}
	return nil
}

// actorId returns the acting user id, 0 when absent.
func actorId(ctx context.Context) int {
	id, _ := utils.GetUserIdFromContext(ctx)
	return id
}

func correlationId(ctx context.Context) string {
	id, _ := utils.GetCorrelationIdFromContext(ctx)
	return id
}
