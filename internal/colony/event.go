package colony

// EventKind classifies colony events.
type EventKind string

const (
	EventFamine             EventKind = "famine"
	EventRebellion          EventKind = "rebellion"
	EventRebellionResolved  EventKind = "rebellion_resolved"
	EventUnemployment       EventKind = "unemployment"
	EventDisease            EventKind = "disease"
	EventDisaster           EventKind = "disaster"
	EventFestival           EventKind = "festival"
	EventDiscovery          EventKind = "discovery"
	EventUpkeepShortfall    EventKind = "upkeep_shortfall"
	EventConstruction       EventKind = "construction"
	EventBuildingDestroyed  EventKind = "building_destroyed"
	EventInfrastructure     EventKind = "infrastructure"
	EventPromotion          EventKind = "promotion"
	EventDemotion           EventKind = "demotion"
	EventRefugeesIntegrated EventKind = "refugees_integrated"
	EventMigration          EventKind = "migration"
	EventAttack             EventKind = "attack"
	EventAbandoned          EventKind = "abandoned"
	EventOvercrowding       EventKind = "overcrowding"
)

// Event is a notable colony occurrence.
type Event struct {
	Turn        uint64    `json:"turn"`
	Kind        EventKind `json:"kind"`
	Description string    `json:"description"`
	Severity    int       `json:"severity,omitempty"`
}
