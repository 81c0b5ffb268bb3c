package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Archetype is a recognised table shape inferred from naming conventions.
type Archetype string

const (
	ArchetypeNone               Archetype = "none"
	ArchetypeVersionedRecord    Archetype = "versioned-record"
	ArchetypeEventLog           Archetype = "event-log"
	ArchetypeStagingArea        Archetype = "staging-area"
	ArchetypeHistoricalSnapshot Archetype = "historical-snapshot"
)

// StereotypeMatch is the tagged result of the detector cascade. A zero-value
// match (or Archetype == ArchetypeNone) means no rule fired.
type StereotypeMatch struct {
	Archetype   Archetype   `json:"archetype"`
	Column      string      `json:"column,omitempty"`
	Rationale   string      `json:"rationale,omitempty"`
	Granularity Granularity `json:"granularity,omitempty"`
}

func (m StereotypeMatch) Matched() bool {
	return m.Archetype != "" && m.Archetype != ArchetypeNone
}

var (
	reEffectiveDate = regexp.MustCompile(`^(EFF|EFFECTIVE)_?(DATE|DT|FROM|START|TS)$|^EFFDT$`)
	reCurrentFlag   = regexp.MustCompile(`^(IS_)?(CURRENT|CURR|CUR|LATEST|ACTIVE)_?(FLAG|FLG|IND|INDICATOR|YN)?$`)
	reValidFrom     = regexp.MustCompile(`^(VALID|VAL|EFF|EFFECTIVE)_?(FROM|START)(_?(DATE|DT|TS))?$|^DATE_FROM$`)
	reValidTo       = regexp.MustCompile(`^(VALID|VAL|EFF|EFFECTIVE)_?(TO|UNTIL|THRU|END)(_?(DATE|DT|TS))?$|^DATE_TO$`)

	reEventTable  = regexp.MustCompile(`(^|_)(EVENT|EVENTS|AUDIT|AUDITS|LOG|LOGS|TXN|TXNS|TRANSACTION|TRANSACTIONS|JOURNAL|ACTIVITY)(_|$)`)
	reEventColumn = regexp.MustCompile(`^(EVENT|LOG|AUDIT|TXN|TRANSACTION|TRANS)_(DATE|DT|TIME|TS|TIMESTAMP|TSTAMP)$`)
	reAuditName   = regexp.MustCompile(`AUDIT|COMPLIANCE|SOX|GDPR|REGULATORY`)

	reStagingTable = regexp.MustCompile(`^(STG|STAGING|STAGE|TMP|TEMP|LANDING|LND|RAW|ETL)_|_(STG|STAGING|STAGE|TMP|TEMP)$`)
	reLoadColumn   = regexp.MustCompile(`^(LOAD|LOADED|LD|ETL|INGEST|INGESTED|BATCH)_?(DATE|DT|TIME|TS|TIMESTAMP|TSTAMP|AT|ON)?$|^LOAD_`)

	reHistoryTable  = regexp.MustCompile(`(^|_)(HIST|HISTORY|HISTORIC|HISTORICAL|ARCHIVE|ARCH|ARC|SNAPSHOT|SNAPSHOTS|SNAP|BKP|BACKUP)(_|$)`)
	reHistoryColumn = regexp.MustCompile(`^(SNAPSHOT|SNAP|HIST|HISTORY|ARCHIVE|ARCHIVED|ARCH|AS_OF)_?(DATE|DT|TS|TIME|TIMESTAMP|AT|ON)?$`)
)

// stereotypeRule is one predicate+extractor in the detector cascade.
type stereotypeRule struct {
	archetype Archetype
	detect    func(table TableDescriptor, cols []ColumnDescriptor) (StereotypeMatch, bool)
}

var stereotypeRules = []stereotypeRule{
	{ArchetypeVersionedRecord, detectVersionedRecord},
	{ArchetypeEventLog, detectEventLog},
	{ArchetypeStagingArea, detectStagingArea},
	{ArchetypeHistoricalSnapshot, detectHistoricalSnapshot},
}

// DetectStereotype runs the cascade in order and returns the first match, or a
// match with ArchetypeNone. Only temporal columns are ever proposed as the
// partition column.
func DetectStereotype(table TableDescriptor, cols []ColumnDescriptor) StereotypeMatch {
	for _, rule := range stereotypeRules {
		if m, ok := rule.detect(table, cols); ok {
			m.Archetype = rule.archetype
			return m
		}
	}
	return StereotypeMatch{Archetype: ArchetypeNone}
}

func detectVersionedRecord(_ TableDescriptor, cols []ColumnDescriptor) (StereotypeMatch, bool) {
	effective := findTemporal(cols, reEffectiveDate)
	current := findAny(cols, reCurrentFlag)
	if effective != "" && current != "" {
		return StereotypeMatch{
			Column:      effective,
			Granularity: GranularityYearly,
			Rationale:   fmt.Sprintf("effective-date column %s paired with current flag %s", effective, current),
		}, true
	}

	from := findTemporal(cols, reValidFrom)
	to := findTemporal(cols, reValidTo)
	if from != "" && to != "" {
		return StereotypeMatch{
			Column:      from,
			Granularity: GranularityYearly,
			Rationale:   fmt.Sprintf("validity period columns %s/%s", from, to),
		}, true
	}
	return StereotypeMatch{}, false
}

func detectEventLog(table TableDescriptor, cols []ColumnDescriptor) (StereotypeMatch, bool) {
	name := upper(table.Name)
	byTable := reEventTable.MatchString(name)
	eventCol := findTemporal(cols, reEventColumn)
	if !byTable && eventCol == "" {
		return StereotypeMatch{}, false
	}

	col := eventCol
	if col == "" {
		col = firstTemporal(cols)
	}
	if col == "" {
		return StereotypeMatch{}, false
	}

	gran := GranularityDaily
	reason := "event/transaction naming"
	if reAuditName.MatchString(name) {
		gran = GranularityMonthly
		reason = "audit/compliance naming"
	}
	return StereotypeMatch{
		Column:      col,
		Granularity: gran,
		Rationale:   fmt.Sprintf("%s on %s, event time column %s", reason, table.Name, col),
	}, true
}

func detectStagingArea(table TableDescriptor, cols []ColumnDescriptor) (StereotypeMatch, bool) {
	if !reStagingTable.MatchString(upper(table.Name)) {
		return StereotypeMatch{}, false
	}
	col := findTemporal(cols, reLoadColumn)
	if col == "" {
		return StereotypeMatch{}, false
	}
	return StereotypeMatch{
		Column:      col,
		Granularity: GranularityDaily,
		Rationale:   fmt.Sprintf("staging naming on %s, load timestamp %s", table.Name, col),
	}, true
}

func detectHistoricalSnapshot(table TableDescriptor, cols []ColumnDescriptor) (StereotypeMatch, bool) {
	if !reHistoryTable.MatchString(upper(table.Name)) {
		return StereotypeMatch{}, false
	}
	col := findTemporal(cols, reHistoryColumn)
	if col == "" {
		col = firstTemporal(cols)
	}
	if col == "" {
		return StereotypeMatch{}, false
	}
	return StereotypeMatch{
		Column:      col,
		Granularity: GranularityMonthly,
		Rationale:   fmt.Sprintf("history naming on %s, snapshot column %s", table.Name, col),
	}, true
}

func findTemporal(cols []ColumnDescriptor, re *regexp.Regexp) string {
	for _, c := range cols {
		if c.Category() == CategoryTemporal && re.MatchString(upper(c.Name)) {
			return c.Name
		}
	}
	return ""
}

func findAny(cols []ColumnDescriptor, re *regexp.Regexp) string {
	for _, c := range cols {
		if re.MatchString(upper(c.Name)) {
			return c.Name
		}
	}
	return ""
}

func firstTemporal(cols []ColumnDescriptor) string {
	for _, c := range cols {
		if c.Category() == CategoryTemporal {
			return c.Name
		}
	}
	return ""
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
