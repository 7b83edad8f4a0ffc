package sim

import (
	"slices"
	"strings"
)

// CustomerTier weights how often a customer orders and how valuable the orders are.
type CustomerTier string

const (
	TierBronze CustomerTier = "bronze"
	TierSilver CustomerTier = "silver"
	TierGold   CustomerTier = "gold"
)

var tierWeights = map[CustomerTier]float64{
	TierBronze: 1,
	TierSilver: 2,
	TierGold:   3,
}

// IsValidTier returns true if name is a recognized tier. Empty means bronze.
func IsValidTier(name string) bool {
	if name == "" {
		return true
	}
	_, ok := tierWeights[CustomerTier(name)]
	return ok
}

// Weight returns the generation weight of the tier.
func (t CustomerTier) Weight() float64 {
	if w, ok := tierWeights[t]; ok {
		return w
	}
	return tierWeights[TierBronze]
}

// CustomerHistory accumulates outcomes of a customer's finished orders.
type CustomerHistory struct {
	Orders  int     `yaml:"orders,omitempty" json:"orders"`
	OnTime  int     `yaml:"on_time,omitempty" json:"onTime"`
	Late    int     `yaml:"late,omitempty" json:"late"`
	Failed  int     `yaml:"failed,omitempty" json:"failed"`
	Revenue float64 `yaml:"revenue,omitempty" json:"revenue"`
}

// Customer is an entry of the customer registry.
type Customer struct {
	ID      string          `yaml:"id" json:"id"`
	Name    string          `yaml:"name" json:"name"`
	Tier    CustomerTier    `yaml:"tier" json:"tier"`
	History CustomerHistory `yaml:"history,omitempty" json:"history"`
}

// DefaultCustomers returns a small mixed-tier registry.
func DefaultCustomers() []Customer {
	return []Customer{
		{ID: "acme", Name: "Acme Industrial", Tier: TierGold},
		{ID: "bolt", Name: "Bolt & Nut Co.", Tier: TierSilver},
		{ID: "craft", Name: "Craftworks", Tier: TierBronze},
		{ID: "delta", Name: "Delta Fabrication", Tier: TierBronze},
	}
}

// CustomerRegistry holds customers keyed by ID with a stable iteration order.
type CustomerRegistry struct {
	byID map[string]*Customer
	ids  []string
}

// NewCustomerRegistry builds a registry sorted by customer ID.
func NewCustomerRegistry(customers []Customer) *CustomerRegistry {
	r := &CustomerRegistry{byID: make(map[string]*Customer, len(customers))}
	for _, c := range customers {
		if c.Tier == "" {
			c.Tier = TierBronze
		}
		cp := c
		if _, dup := r.byID[c.ID]; !dup {
			r.ids = append(r.ids, c.ID)
		}
		r.byID[c.ID] = &cp
	}
	slices.SortFunc(r.ids, strings.Compare)
	return r
}

// Get returns the customer with the given ID.
func (r *CustomerRegistry) Get(id string) (*Customer, bool) {
	c, ok := r.byID[id]
	return c, ok
}

// Len returns the number of customers.
func (r *CustomerRegistry) Len() int {
	return len(r.ids)
}

// List returns copies of all customers ordered by ID.
func (r *CustomerRegistry) List() []Customer {
	out := make([]Customer, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, *r.byID[id])
	}
	return out
}

// recordOutcome updates the history of the order's customer, if known.
func (r *CustomerRegistry) recordOutcome(o *Order) {
	c, ok := r.byID[o.CustomerID]
	if !ok {
		return
	}
	c.History.Orders++
	switch o.Status {
	case StatusCompletedOnTime, StatusDone:
		c.History.OnTime++
		c.History.Revenue += o.Value
	case StatusCompletedLate:
		c.History.Late++
		c.History.Revenue += o.Value
	case StatusError:
		c.History.Failed++
	}
}
