package models

// RawEvent is one event record as returned by the feed: loosely typed,
// with inconsistent field presence. The normalizer is the only consumer
// that interprets it; everything downstream works with Trade.
type RawEvent struct {
	Block       RawBlock       `json:"Block"`
	Transaction RawTransaction `json:"Transaction"`
	Log         RawLog         `json:"Log"`
	Arguments   []RawArgument  `json:"Arguments"`
}

type RawBlock struct {
	Time   string `json:"Time"`
	Number uint64 `json:"Number"`
	Hash   string `json:"Hash"`
}

type RawTransaction struct {
	Hash string `json:"Hash"`
	From string `json:"From"`
	To   string `json:"To"`
}

type RawLog struct {
	Index uint64 `json:"Index"`
}

// RawArgument is a decoded ABI argument. Value is either a primitive or
// a container object keyed by ABI type ("bigInteger", "address", ...).
type RawArgument struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// Argument returns the named argument value and whether it was present.
func (e RawEvent) Argument(name string) (any, bool) {
	for _, arg := range e.Arguments {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}
