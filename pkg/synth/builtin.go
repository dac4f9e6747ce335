package synth

// BuiltinRuleTable returns the mapping used for the DORA instrument family
// when no rule file is configured.
func BuiltinRuleTable() *RuleTable {
	incident := []int{17, 18, 19, 20}
	thirdParty := []int{28, 29, 30}

	return &RuleTable{
		Rules: []Rule{
			{
				Name:      "register-of-information",
				Predicate: Predicate{Instruments: []string{"EU_2024_2956"}},
				Outcome: Outcome{
					Primary:    []string{"REGISTER_INVENTORY"},
					Supporting: []string{"PROCEDURE_RUNBOOK"},
				},
			},
			{
				Name:      "incident-reporting-standards",
				Predicate: Predicate{Instruments: []string{"EU_2025_301", "EU_2025_302"}},
				Outcome: Outcome{
					Primary:    []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"},
					Supporting: []string{"MONITORING_REVIEW", "POSTMORTEM"},
				},
			},
			{
				Name:      "incident-classification",
				Predicate: Predicate{Instruments: []string{"EU_2024_1772"}},
				Outcome: Outcome{
					Primary:    []string{"POLICY", "PROCEDURE_RUNBOOK"},
					Supporting: []string{"INCIDENT_RECORD", "TRAINING_ATTESTATION"},
				},
			},
			{
				Name:      "contractual-provisions",
				Predicate: Predicate{Articles: []int{30}},
				Outcome: Outcome{
					Primary:    []string{"CONTRACT_CLAUSE"},
					Supporting: []string{"MONITORING_REVIEW", "RISK_ASSESSMENT"},
				},
			},
			{
				Name:      "third-party-risk",
				Predicate: Predicate{Articles: []int{28, 29}},
				Outcome: Outcome{
					Primary:    []string{"REGISTER_INVENTORY", "POLICY"},
					Supporting: []string{"RISK_ASSESSMENT", "DUE_DILIGENCE", "MONITORING_REVIEW", "EXIT_BCP_DR"},
				},
			},
			{
				Name:      "incident-management",
				Predicate: Predicate{Articles: incident},
				Outcome: Outcome{
					Primary:    []string{"PROCEDURE_RUNBOOK", "INCIDENT_RECORD"},
					Supporting: []string{"POLICY", "POSTMORTEM", "TEST_EVIDENCE", "TRAINING_ATTESTATION"},
				},
			},
		},
		Default: Outcome{
			Primary:    []string{"POLICY"},
			Supporting: []string{"PROCEDURE_RUNBOOK"},
		},
		BaseTopics: []string{"DORA"},
		Topics: []TopicRule{
			{Predicate: Predicate{Instruments: []string{"EU_2024_2956"}}, Tags: []string{"TPRM", "RoI"}},
			{Predicate: Predicate{Articles: thirdParty}, Tags: []string{"TPRM", "RoI"}},
			{Predicate: Predicate{Instruments: []string{"EU_2024_1772", "EU_2025_301", "EU_2025_302"}}, Tags: []string{"INCIDENT"}},
			{Predicate: Predicate{Articles: incident}, Tags: []string{"INCIDENT"}},
		},
		Keywords: []KeywordRule{
			{Lang: "en", AnyOf: []string{"register"}, Keywords: []string{"register of information", "update", "maintain"}},
			{Lang: "en", AnyOf: []string{"incident"}, Keywords: []string{"incident", "classification", "reporting"}},
			{Lang: "en", AnyOf: []string{"contract"}, Keywords: []string{"contract", "clause", "audit rights"}},
			{Lang: "de", AnyOf: []string{"informationsregister", "register"}, Keywords: []string{"Informationsregister", "Register", "aktualisieren"}},
			{Lang: "de", AnyOf: []string{"vorfall", "zwischenfall"}, Keywords: []string{"IKT-Vorfall", "Klassifikation", "Meldung"}},
			{Lang: "de", AnyOf: []string{"vertrag"}, Keywords: []string{"Vertrag", "Klausel", "Prüfrechte"}},
		},
	}
}

// BuiltinVocabulary lists the evidence codes referenced by BuiltinRuleTable.
func BuiltinVocabulary() []string {
	return BuiltinRuleTable().Codes()
}
