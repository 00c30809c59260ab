package pricing

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUBSIDY OVERVIEW - Detail view of expected subsidies
// =============================================================================

// SubsidyLine is one participant's entry in a subsidy list.
type SubsidyLine struct {
	ParticipantID ParticipantID
	Name          string
	BirthDate     Date
	Age           int
	FamilyName    string
	ChildPosition int
	BasePrice     decimal.Decimal
	SubsidyAmount decimal.Decimal
}

// RoleSubsidyGroup lists the participants of one subsidy-eligible role.
type RoleSubsidyGroup struct {
	RoleID          RoleID
	RoleName        string
	DisplayName     string
	DiscountPercent decimal.Decimal
	Lines           []SubsidyLine
	TotalBasePrice  decimal.Decimal
	TotalSubsidy    decimal.Decimal
}

// FamilySubsidyGroup lists children with a non-zero family discount.
type FamilySubsidyGroup struct {
	Lines          []SubsidyLine
	TotalBasePrice decimal.Decimal
	TotalSubsidy   decimal.Decimal
}

// SubsidyOverview is every subsidy the event expects, grouped for funders.
type SubsidyOverview struct {
	EventID EventID
	Roles   []RoleSubsidyGroup

	// Family is nil when no child receives a family discount.
	Family *FamilySubsidyGroup

	// GrandTotal equals Totals.ExpectedSubsidies of the same cohort.
	GrandTotal decimal.Decimal
}

// Subsidies builds the overview from a cohort. It never recomputes a price;
// every amount comes from the cohort's results.
func Subsidies(c *Cohort) SubsidyOverview {
	overview := SubsidyOverview{EventID: c.EventID, GrandTotal: decimal.Zero}
	if c.Ruleset == nil {
		return overview
	}

	grand := decimal.Zero
	groups := make(map[RoleID]*RoleSubsidyGroup)
	var family FamilySubsidyGroup
	familyBase, familySubsidy := decimal.Zero, decimal.Zero

	for _, r := range c.Results {
		if r.HasOverride() {
			continue
		}

		if r.Role != nil && r.Role.SubsidyEligible {
			g, ok := groups[r.Role.RoleID]
			if !ok {
				role, _ := c.Role(r.Role.RoleID)
				g = &RoleSubsidyGroup{
					RoleID:          r.Role.RoleID,
					RoleName:        r.Role.RoleName,
					DisplayName:     role.DisplayName,
					DiscountPercent: r.Role.Percent,
					TotalBasePrice:  decimal.Zero,
					TotalSubsidy:    decimal.Zero,
				}
				groups[r.Role.RoleID] = g
			}
			g.Lines = append(g.Lines, SubsidyLine{
				ParticipantID: r.ParticipantID,
				Name:          r.Name,
				BirthDate:     r.BirthDate,
				Age:           r.Age,
				BasePrice:     r.BasePrice,
				SubsidyAmount: r.Role.Amount,
			})
			g.TotalBasePrice = g.TotalBasePrice.Add(r.BasePrice)
			g.TotalSubsidy = g.TotalSubsidy.Add(r.Role.Amount)
			grand = grand.Add(r.Role.Amount)
		}

		if r.Family != nil && !r.Family.Amount.IsZero() {
			f, _ := c.Family(r.FamilyID)
			family.Lines = append(family.Lines, SubsidyLine{
				ParticipantID: r.ParticipantID,
				Name:          r.Name,
				BirthDate:     r.BirthDate,
				Age:           r.Age,
				FamilyName:    f.Name,
				ChildPosition: r.Family.ChildPosition,
				BasePrice:     r.BasePrice,
				SubsidyAmount: r.Family.Amount,
			})
			familyBase = familyBase.Add(r.BasePrice)
			familySubsidy = familySubsidy.Add(r.Family.Amount)
			grand = grand.Add(r.Family.Amount)
		}
	}

	for _, g := range groups {
		g.TotalBasePrice = RoundTotal(g.TotalBasePrice)
		overview.Roles = append(overview.Roles, *g)
	}
	sort.Slice(overview.Roles, func(i, j int) bool {
		a, b := strings.ToLower(overview.Roles[i].RoleName), strings.ToLower(overview.Roles[j].RoleName)
		if a != b {
			return a < b
		}
		return overview.Roles[i].RoleID < overview.Roles[j].RoleID
	})

	// Group totals are shares of the rounded grand total, so the listed
	// groups add up to it to the cent.
	exact := make([]decimal.Decimal, 0, len(overview.Roles)+1)
	for _, g := range overview.Roles {
		exact = append(exact, g.TotalSubsidy)
	}
	if len(family.Lines) > 0 {
		exact = append(exact, familySubsidy)
	}
	overview.GrandTotal = RoundTotal(grand)
	shares := AllocateCents(overview.GrandTotal, exact)

	for i := range overview.Roles {
		overview.Roles[i].TotalSubsidy = shares[i]
	}
	if len(family.Lines) > 0 {
		family.TotalBasePrice = RoundTotal(familyBase)
		family.TotalSubsidy = shares[len(shares)-1]
		overview.Family = &family
	}
	return overview
}

// LoadSubsidies prices the event and builds its subsidy overview.
func LoadSubsidies(ctx context.Context, s Store, eventID EventID) (*Cohort, SubsidyOverview, error) {
	cohort, err := LoadCohort(ctx, s, eventID, ParticipantFilter{})
	if err != nil {
		return nil, SubsidyOverview{}, err
	}
	return cohort, Subsidies(cohort), nil
}

// RoleGroup returns the group of a role, or ErrRoleNotFound.
func (o SubsidyOverview) RoleGroup(id RoleID) (RoleSubsidyGroup, error) {
	for _, g := range o.Roles {
		if g.RoleID == id {
			return g, nil
		}
	}
	return RoleSubsidyGroup{}, ErrRoleNotFound
}

func sortRoles(roles []Role) {
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Name != roles[j].Name {
			return roles[i].Name < roles[j].Name
		}
		return roles[i].ID < roles[j].ID
	})
}
