package registry

// DefaultCatalog returns the built-in personal injury pre-litigation
// catalog. Firms with a litigation track load their own catalog file;
// the chain invariants are the same either way.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Version: "1.0",
		Phases: []Phase{
			{
				ID:          "phase_0_onboarding",
				DisplayName: "Onboarding",
				Order:       0,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "client_intake_complete", DisplayName: "Client intake complete", HardBlocker: true, Predicate: "intake_complete"},
					{ID: "accident_details_recorded", DisplayName: "Accident details recorded", HardBlocker: true, Predicate: "accident_details_recorded"},
					{ID: "retainer_signed", DisplayName: "Retainer signed", HardBlocker: true, Predicate: "retainer_signed"},
				},
				ExitCriteria: []string{"intake_complete"},
				Workflows: []Workflow{
					{ID: "wf_client_intake", DisplayName: "Client intake", ContributesTo: []string{"intake_complete"}},
					{ID: "wf_retainer_signature", DisplayName: "Retainer signature", ContributesTo: []string{"intake_complete"}},
				},
				NextPhase: "phase_1_file_setup",
			},
			{
				ID:          "phase_1_file_setup",
				DisplayName: "File Setup",
				Order:       1,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "claims_opened", DisplayName: "Insurance claims opened", HardBlocker: true, Predicate: "claims_opened"},
					{ID: "coverage_confirmed", DisplayName: "Coverage confirmed", HardBlocker: true, Predicate: "coverage_confirmed"},
					{ID: "police_report_obtained", DisplayName: "Police report obtained", HardBlocker: false, Predicate: "police_report_on_file"},
				},
				ExitCriteria: []string{"claims_established"},
				Workflows: []Workflow{
					{ID: "wf_open_claims", DisplayName: "Open insurance claims", ContributesTo: []string{"claims_established"}},
					{ID: "wf_verify_coverage", DisplayName: "Verify coverage", ContributesTo: []string{"claims_established"}},
				},
				NextPhase: "phase_2_treatment",
			},
			{
				ID:          "phase_2_treatment",
				DisplayName: "Treatment",
				Order:       2,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "treatment_started", DisplayName: "Treatment started", HardBlocker: true, Predicate: "treatment_started"},
					{ID: "treatment_completed", DisplayName: "Treatment completed", HardBlocker: true, Predicate: "treatment_completed"},
					{ID: "medical_records_collected", DisplayName: "Medical records collected", HardBlocker: true, Predicate: "records_received"},
					{ID: "medical_bills_collected", DisplayName: "Medical bills collected", HardBlocker: false, Predicate: "bills_received"},
				},
				ExitCriteria: []string{"treatment_concluded", "records_complete"},
				Workflows: []Workflow{
					{ID: "wf_treatment_checkin", DisplayName: "Treatment check-in", ContributesTo: []string{"treatment_concluded"}},
					{ID: "wf_records_collection", DisplayName: "Records collection", ContributesTo: []string{"records_complete"}},
					{ID: "wf_bills_collection", DisplayName: "Bills collection", ContributesTo: []string{"records_complete"}},
				},
				NextPhase: "phase_3_demand",
			},
			{
				ID:          "phase_3_demand",
				DisplayName: "Demand",
				Order:       3,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "demand_drafted", DisplayName: "Demand drafted", HardBlocker: true, Predicate: "demand_drafted"},
					{ID: "demand_sent", DisplayName: "Demand sent", HardBlocker: true, Predicate: "demand_sent"},
					{ID: "liens_identified", DisplayName: "Liens identified", HardBlocker: false, Predicate: "liens_on_file"},
				},
				ExitCriteria: []string{"demand_delivered"},
				Workflows: []Workflow{
					{ID: "wf_demand_preparation", DisplayName: "Demand preparation", ContributesTo: []string{"demand_delivered"}},
					{ID: "wf_demand_delivery", DisplayName: "Demand delivery", ContributesTo: []string{"demand_delivered"}},
				},
				NextPhase: "phase_4_negotiation",
			},
			{
				ID:          "phase_4_negotiation",
				DisplayName: "Negotiation",
				Order:       4,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "negotiation_started", DisplayName: "Negotiation started", HardBlocker: false, Predicate: "negotiation_active"},
					{ID: "offer_received", DisplayName: "Offer received", HardBlocker: false, Predicate: "offer_recorded"},
					{ID: "settlement_reached", DisplayName: "Settlement reached", HardBlocker: true, Predicate: "settlement_recorded"},
				},
				ExitCriteria: []string{"settlement_agreed"},
				Workflows: []Workflow{
					{ID: "wf_negotiation_tracking", DisplayName: "Negotiation tracking", ContributesTo: []string{"settlement_agreed"}},
				},
				NextPhase: "phase_5_settlement",
			},
			{
				ID:          "phase_5_settlement",
				DisplayName: "Settlement",
				Order:       5,
				Track:       TrackPreLitigation,
				Landmarks: []Landmark{
					{ID: "release_signed", DisplayName: "Release signed", HardBlocker: true, Predicate: "release_signed"},
					{ID: "settlement_funds_received", DisplayName: "Settlement funds received", HardBlocker: true, Predicate: "funds_received"},
					{ID: "liens_resolved", DisplayName: "Liens resolved", HardBlocker: true, Predicate: "liens_resolved"},
					{ID: "client_disbursement_complete", DisplayName: "Client disbursement complete", HardBlocker: true, Predicate: "disbursement_recorded"},
				},
				ExitCriteria: []string{"funds_disbursed"},
				Workflows: []Workflow{
					{ID: "wf_settlement_disbursement", DisplayName: "Settlement disbursement", ContributesTo: []string{"funds_disbursed"}},
					{ID: "wf_lien_resolution", DisplayName: "Lien resolution", ContributesTo: []string{"funds_disbursed"}},
				},
				NextPhase: "phase_6_closed",
			},
			{
				ID:           "phase_6_closed",
				DisplayName:  "Closed",
				Order:        6,
				Track:        TrackPreLitigation,
				Landmarks:    nil,
				ExitCriteria: nil,
				Workflows:    nil,
			},
		},
		Criteria: []Criterion{
			{ID: "intake_complete", DisplayName: "Intake complete", Requires: []string{"client_intake_complete", "accident_details_recorded", "retainer_signed"}},
			{ID: "claims_established", DisplayName: "Claims established", Requires: []string{"claims_opened", "coverage_confirmed"}},
			{ID: "treatment_concluded", DisplayName: "Treatment concluded", Requires: []string{"treatment_started", "treatment_completed"}},
			{ID: "records_complete", DisplayName: "Records complete", Requires: []string{"medical_records_collected"}},
			{ID: "demand_delivered", DisplayName: "Demand delivered", Requires: []string{"demand_drafted", "demand_sent"}},
			{ID: "settlement_agreed", DisplayName: "Settlement agreed", Requires: []string{"settlement_reached"}},
			{ID: "funds_disbursed", DisplayName: "Funds disbursed", Requires: []string{"release_signed", "settlement_funds_received", "liens_resolved", "client_disbursement_complete"}},
		},
	}
}

// Default builds and validates the built-in catalog. It panics only if
// the built-in catalog itself is broken, which is a programming error.
func Default() *Registry {
	r, err := New(DefaultCatalog())
	if err != nil {
		panic(err)
	}
	return r
}
