package pattern

// Names of the built-in categories.
const (
	CategoryAppend = "append"
	CategoryNamed  = "named"
)

// Built-in expressions. Both expect the bracketed timestamp prefix written by
// the Kafka broker's log4j layout.
const (
	// [2017-04-12 10:15:02,123] TRACE Appended message set to log test-0 with first offset: 10, size: 100 bytes (kafka.log.Log)
	AppendExpr = `^\[([^\]]*)\] \w+ Appended message set to log \S+ with first offset: ([0-9]*), size: ([0-9]*) bytes`

	// [2017-04-12 10:15:02,123] INFO [GroupCoordinator 0]: handled event: rebalance (kafka.coordinator)
	NamedExpr = `^\[[^\]]*\] \w+ .*\bevent: (\S+)`
)

// Defaults returns the built-in event patterns.
func Defaults() []EventPattern {
	return []EventPattern{
		{
			Name:      CategoryAppend,
			Label:     "append",
			Expr:      AppendExpr,
			Aggregate: AggregateNumeric,
			Fields: []FieldSpec{
				{Name: "offset", Label: "offset", Group: 2, Kind: KindInteger, Role: RoleRange},
				{Name: "bytes", Label: "bytes written", Group: 3, Kind: KindInteger, Role: RoleSum},
			},
		},
		{
			Name:      CategoryNamed,
			Label:     "named",
			Expr:      NamedExpr,
			Aggregate: AggregateHistogram,
			Fields: []FieldSpec{
				{Name: "event", Group: 1, Kind: KindText, Role: RoleKey},
			},
		},
	}
}
