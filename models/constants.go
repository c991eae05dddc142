package models

type CommodityType string

const (
	CommodityBeans    CommodityType = "beans"
	CommodityMaize    CommodityType = "maize"
	CommodityCowpeas  CommodityType = "cowpeas"
	CommodityGnuts    CommodityType = "gnuts"
	CommodityRice     CommodityType = "rice"
	CommoditySoybeans CommodityType = "soybeans"
)

var AllCommodityType = []CommodityType{
	CommodityBeans,
	CommodityMaize,
	CommodityCowpeas,
	CommodityGnuts,
	CommodityRice,
	CommoditySoybeans,
}

func (e CommodityType) IsValid() bool {
	switch e {
	case CommodityBeans, CommodityMaize, CommodityCowpeas, CommodityGnuts, CommodityRice, CommoditySoybeans:
		return true
	}
	return false
}

func (e CommodityType) Label() string {
	switch e {
	case CommodityBeans:
		return "Beans"
	case CommodityMaize:
		return "Maize"
	case CommodityCowpeas:
		return "Cowpeas"
	case CommodityGnuts:
		return "Groundnuts (G-nuts)"
	case CommodityRice:
		return "Rice"
	case CommoditySoybeans:
		return "Soybeans"
	}
	return string(e)
}

func (e CommodityType) String() string {
	return string(e)
}

type Branch string

const (
	BranchMaganjo Branch = "maganjo"
	BranchMatugga Branch = "matugga"
)

var AllBranch = []Branch{
	BranchMaganjo,
	BranchMatugga,
}

func (e Branch) IsValid() bool {
	switch e {
	case BranchMaganjo, BranchMatugga:
		return true
	}
	return false
}

func (e Branch) String() string {
	return string(e)
}

type UserRole string

const (
	UserRoleAgent   UserRole = "Agent"
	UserRoleManager UserRole = "Manager"
	UserRoleCEO     UserRole = "CEO"
)

var AllUserRole = []UserRole{
	UserRoleAgent,
	UserRoleManager,
	UserRoleCEO,
}

func (e UserRole) IsValid() bool {
	switch e {
	case UserRoleAgent, UserRoleManager, UserRoleCEO:
		return true
	}
	return false
}

func (e UserRole) String() string {
	return string(e)
}

type StockMovementKind string

const (
	StockMovementProcurement StockMovementKind = "PROCUREMENT"
	StockMovementSale        StockMovementKind = "SALE"
	StockMovementOverride    StockMovementKind = "OVERRIDE"
)

type StockAction string

const (
	StockActionCreate StockAction = "CREATE"
	StockActionUpdate StockAction = "UPDATE"
	StockActionDelete StockAction = "DELETE"
)

// Outbox publish statuses for OutboxMessage.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
