package quota

import "fmt"

// Ceilings maps each tier and service to its daily request ceiling.
type Ceilings map[Tier]map[Service]int64

// DefaultCeilings returns the standard ceiling table.
func DefaultCeilings() Ceilings {
	return Ceilings{
		TierGuest: {
			ServiceBedrock:  5,
			ServiceTextract: 10,
		},
		TierUser: {
			ServiceBedrock:  50,
			ServiceTextract: 100,
		},
	}
}

// Lookup returns the ceiling for tier and svc.
func (c Ceilings) Lookup(tier Tier, svc Service) (int64, error) {
	limit, ok := c[tier][svc]
	if !ok {
		return 0, &ConfigurationError{Tier: tier, Service: svc}
	}
	return limit, nil
}

// Validate checks that every tier defines a positive ceiling for every
// service and that users are granted more than guests.
func (c Ceilings) Validate() error {
	for _, tier := range []Tier{TierGuest, TierUser} {
		if _, ok := c[tier]; !ok {
			return fmt.Errorf("missing ceilings for tier %q", tier)
		}
		for _, svc := range Services {
			limit, ok := c[tier][svc]
			if !ok {
				return &ConfigurationError{Tier: tier, Service: svc}
			}
			if limit <= 0 {
				return fmt.Errorf("ceiling for tier %q service %q must be positive, got %d", tier, svc, limit)
			}
		}
	}
	for _, svc := range Services {
		if c[TierUser][svc] <= c[TierGuest][svc] {
			return fmt.Errorf("user ceiling for %q (%d) must exceed guest ceiling (%d)",
				svc, c[TierUser][svc], c[TierGuest][svc])
		}
	}
	return nil
}

// Clone returns a deep copy of c.
func (c Ceilings) Clone() Ceilings {
	out := make(Ceilings, len(c))
	for tier, services := range c {
		m := make(map[Service]int64, len(services))
		for svc, limit := range services {
			m[svc] = limit
		}
		out[tier] = m
	}
	return out
}
