// Package casedata loads and normalizes the underlying case records for
// one case: overview, insurance claims, medical providers, liens, and
// litigation artifacts. Records migrated from the legacy system are
// heterogeneous; everything is parsed into typed structs with optional
// fields at this boundary so downstream predicates never see raw maps.
package casedata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date tolerant of the formats found in historical
// records: "2006-01-02", RFC 3339 timestamps, and "01/02/2006".
type Date struct {
	time.Time
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON accepts any supported layout. Empty and null values
// decode to the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognized date %q", raw)
}

// MarshalJSON emits the ISO date form.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// Overview holds the top-level case record fields.
type Overview struct {
	ClientName          string `json:"client_name"`
	ClientPhone         string `json:"client_phone,omitempty"`
	ClientEmail         string `json:"client_email,omitempty"`
	AccidentDate        *Date  `json:"accident_date,omitempty"`
	AccidentType        string `json:"accident_type,omitempty"`
	AccidentDescription string `json:"accident_description,omitempty"`
	// Phase is the explicit phase marker, present only on cases created
	// after phase tracking was introduced. Legacy cases leave it empty.
	Phase               string `json:"phase,omitempty"`
	IntakeCompletedDate *Date  `json:"intake_completed_date,omitempty"`
	RetainerSignedDate  *Date  `json:"retainer_signed_date,omitempty"`
	PoliceReportNumber  string `json:"police_report_number,omitempty"`
	ClientDisbursedDate *Date  `json:"client_disbursed_date,omitempty"`
	ClosedDate          *Date  `json:"closed_date,omitempty"`
}

// Offer is a recorded settlement offer on a claim.
type Offer struct {
	Amount float64 `json:"amount"`
	Date   *Date   `json:"date,omitempty"`
	Source string  `json:"source,omitempty"`
}

// InsuranceClaim is one claim against a carrier.
type InsuranceClaim struct {
	ClaimNumber       string   `json:"claim_number,omitempty"`
	Carrier           string   `json:"carrier,omitempty"`
	Type              string   `json:"type,omitempty"` // liability, um, uim, medpay
	Adjuster          string   `json:"adjuster,omitempty"`
	OpenedDate        *Date    `json:"opened_date,omitempty"`
	CoverageConfirmed *bool    `json:"coverage_confirmed,omitempty"`
	PolicyLimit       *float64 `json:"policy_limit,omitempty"`
	DemandDraftedDate *Date    `json:"demand_drafted_date,omitempty"`
	DemandSentDate    *Date    `json:"demand_sent_date,omitempty"`
	NegotiationStatus string   `json:"negotiation_status,omitempty"` // active, stalled, concluded
	Offers            []Offer  `json:"offers,omitempty"`
	SettlementAmount  *float64 `json:"settlement_amount,omitempty"`
	ReleaseSignedDate *Date    `json:"release_signed_date,omitempty"`
	FundsReceivedDate *Date    `json:"funds_received_date,omitempty"`
}

// MedicalProvider is one treating provider.
type MedicalProvider struct {
	Name                string   `json:"name"`
	Specialty           string   `json:"specialty,omitempty"`
	TreatmentStartDate  *Date    `json:"treatment_start_date,omitempty"`
	TreatmentEndDate    *Date    `json:"treatment_end_date,omitempty"`
	RecordsReceivedDate *Date    `json:"records_received_date,omitempty"`
	BillsReceivedDate   *Date    `json:"bills_received_date,omitempty"`
	BilledAmount        *float64 `json:"billed_amount,omitempty"`
}

// Lien is a lien against eventual recovery.
type Lien struct {
	Holder       string   `json:"holder"`
	Type         string   `json:"type,omitempty"` // medical, subrogation, government
	Amount       *float64 `json:"amount,omitempty"`
	ResolvedDate *Date    `json:"resolved_date,omitempty"`
}

// LitigationContact is opposing counsel, a court clerk, or similar.
type LitigationContact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Firm  string `json:"firm,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Litigation holds litigation artifacts once suit is filed.
type Litigation struct {
	ComplaintFiledDate    *Date               `json:"complaint_filed_date,omitempty"`
	Court                 string              `json:"court,omitempty"`
	CaseNumber            string              `json:"case_number,omitempty"`
	DiscoveryCompleteDate *Date               `json:"discovery_complete_date,omitempty"`
	Contacts              []LitigationContact `json:"contacts,omitempty"`
}

// CaseData is the read-only bundle of normalized records for one case.
// It is owned exclusively by one derivation call and never mutated.
type CaseData struct {
	CaseID     string
	Overview   *Overview
	Claims     []InsuranceClaim
	Providers  []MedicalProvider
	Liens      []Lien
	Litigation *Litigation
}

// HasDate reports whether an optional date is present and non-zero.
func HasDate(d *Date) bool {
	return d != nil && !d.IsZero()
}
