// Package derive computes the canonical workflow position of one case:
// landmark statuses, hard blockers, the resting phase, and the workflows
// still needed. Derivation is a pure function of the case data plus the
// previously persisted phase record, so re-running it never corrupts
// recorded progress.
package derive

import (
	"fmt"
	"sort"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/registry"
)

// Predicate evaluates one landmark from case data. Predicates must be
// total: tolerate absent or nil fields (treat as incomplete) and never
// panic. Given identical case data the result is identical across runs.
type Predicate func(*casedata.CaseData) registry.LandmarkStatus

// predicates is the catalog of named predicates referenced by landmark
// definitions. The map is populated at init and read-only afterward.
var predicates = map[string]Predicate{
	"intake_complete":           predIntakeComplete,
	"accident_details_recorded": predAccidentDetails,
	"retainer_signed":           predRetainerSigned,
	"claims_opened":             predClaimsOpened,
	"coverage_confirmed":        predCoverageConfirmed,
	"police_report_on_file":     predPoliceReport,
	"treatment_started":         predTreatmentStarted,
	"treatment_completed":       predTreatmentCompleted,
	"records_received":          predRecordsReceived,
	"bills_received":            predBillsReceived,
	"demand_drafted":            predDemandDrafted,
	"demand_sent":               predDemandSent,
	"liens_on_file":             predLiensOnFile,
	"negotiation_active":        predNegotiationActive,
	"offer_recorded":            predOfferRecorded,
	"settlement_recorded":       predSettlementRecorded,
	"release_signed":            predReleaseSigned,
	"funds_received":            predFundsReceived,
	"liens_resolved":            predLiensResolved,
	"disbursement_recorded":     predDisbursementRecorded,
	"complaint_filed":           predComplaintFiled,
	"discovery_complete":        predDiscoveryComplete,
}

// LookupPredicate returns the named predicate.
func LookupPredicate(name string) (Predicate, error) {
	p, ok := predicates[name]
	if !ok {
		return nil, fmt.Errorf("unknown predicate %q", name)
	}
	return p, nil
}

// PredicateNames returns the registered predicate names, sorted.
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func predIntakeComplete(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Overview == nil {
		return registry.StatusIncomplete
	}
	if casedata.HasDate(d.Overview.IntakeCompletedDate) {
		return registry.StatusComplete
	}
	if d.Overview.ClientName != "" {
		return registry.StatusInProgress
	}
	return registry.StatusIncomplete
}

func predAccidentDetails(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Overview == nil {
		return registry.StatusIncomplete
	}
	hasDate := casedata.HasDate(d.Overview.AccidentDate)
	hasType := d.Overview.AccidentType != ""
	switch {
	case hasDate && hasType:
		return registry.StatusComplete
	case hasDate || hasType:
		return registry.StatusInProgress
	default:
		return registry.StatusIncomplete
	}
}

func predRetainerSigned(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Overview == nil {
		return registry.StatusIncomplete
	}
	if casedata.HasDate(d.Overview.RetainerSignedDate) {
		return registry.StatusComplete
	}
	return registry.StatusIncomplete
}

func predClaimsOpened(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || len(d.Claims) == 0 {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if casedata.HasDate(d.Claims[i].OpenedDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusInProgress
}

func predCoverageConfirmed(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || len(d.Claims) == 0 {
		return registry.StatusIncomplete
	}
	confirmed := 0
	for i := range d.Claims {
		if d.Claims[i].CoverageConfirmed != nil && *d.Claims[i].CoverageConfirmed {
			confirmed++
		}
	}
	switch {
	case confirmed == len(d.Claims):
		return registry.StatusComplete
	case confirmed > 0:
		return registry.StatusInProgress
	default:
		return registry.StatusIncomplete
	}
}

func predPoliceReport(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Overview == nil || d.Overview.PoliceReportNumber == "" {
		return registry.StatusIncomplete
	}
	return registry.StatusComplete
}

func predTreatmentStarted(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Providers {
		if casedata.HasDate(d.Providers[i].TreatmentStartDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

// providerDateProgress grades how many providers carry a given date.
func providerDateProgress(d *casedata.CaseData, get func(*casedata.MedicalProvider) *casedata.Date) registry.LandmarkStatus {
	if d == nil || len(d.Providers) == 0 {
		return registry.StatusIncomplete
	}
	have := 0
	for i := range d.Providers {
		if casedata.HasDate(get(&d.Providers[i])) {
			have++
		}
	}
	switch {
	case have == len(d.Providers):
		return registry.StatusComplete
	case have > 0:
		return registry.StatusInProgress
	default:
		return registry.StatusIncomplete
	}
}

func predTreatmentCompleted(d *casedata.CaseData) registry.LandmarkStatus {
	return providerDateProgress(d, func(p *casedata.MedicalProvider) *casedata.Date { return p.TreatmentEndDate })
}

func predRecordsReceived(d *casedata.CaseData) registry.LandmarkStatus {
	return providerDateProgress(d, func(p *casedata.MedicalProvider) *casedata.Date { return p.RecordsReceivedDate })
}

func predBillsReceived(d *casedata.CaseData) registry.LandmarkStatus {
	return providerDateProgress(d, func(p *casedata.MedicalProvider) *casedata.Date { return p.BillsReceivedDate })
}

func predDemandDrafted(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if casedata.HasDate(d.Claims[i].DemandDraftedDate) || casedata.HasDate(d.Claims[i].DemandSentDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predDemandSent(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if casedata.HasDate(d.Claims[i].DemandSentDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predLiensOnFile(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || len(d.Liens) == 0 {
		return registry.StatusIncomplete
	}
	return registry.StatusComplete
}

func predNegotiationActive(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if d.Claims[i].NegotiationStatus == "active" || len(d.Claims[i].Offers) > 0 {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predOfferRecorded(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if len(d.Claims[i].Offers) > 0 {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predSettlementRecorded(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if d.Claims[i].SettlementAmount != nil && *d.Claims[i].SettlementAmount > 0 {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predReleaseSigned(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if casedata.HasDate(d.Claims[i].ReleaseSignedDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predFundsReceived(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	for i := range d.Claims {
		if casedata.HasDate(d.Claims[i].FundsReceivedDate) {
			return registry.StatusComplete
		}
	}
	return registry.StatusIncomplete
}

func predLiensResolved(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil {
		return registry.StatusIncomplete
	}
	if len(d.Liens) == 0 {
		// No liens to resolve.
		return registry.StatusComplete
	}
	resolved := 0
	for i := range d.Liens {
		if casedata.HasDate(d.Liens[i].ResolvedDate) {
			resolved++
		}
	}
	switch {
	case resolved == len(d.Liens):
		return registry.StatusComplete
	case resolved > 0:
		return registry.StatusInProgress
	default:
		return registry.StatusIncomplete
	}
}

func predDisbursementRecorded(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Overview == nil {
		return registry.StatusIncomplete
	}
	if casedata.HasDate(d.Overview.ClientDisbursedDate) {
		return registry.StatusComplete
	}
	return registry.StatusIncomplete
}

func predComplaintFiled(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Litigation == nil {
		return registry.StatusIncomplete
	}
	if casedata.HasDate(d.Litigation.ComplaintFiledDate) {
		return registry.StatusComplete
	}
	return registry.StatusIncomplete
}

func predDiscoveryComplete(d *casedata.CaseData) registry.LandmarkStatus {
	if d == nil || d.Litigation == nil {
		return registry.StatusIncomplete
	}
	if casedata.HasDate(d.Litigation.DiscoveryCompleteDate) {
		return registry.StatusComplete
	}
	return registry.StatusIncomplete
}
