package allowlist

// DefaultEntries lists the read-only utilities usable without operator
// configuration. Anything that mutates state, reaches the network, or
// spawns a shell must be allowed explicitly.
var DefaultEntries = Entries{
	Allowed: []string{
		"basename",
		"cat",
		"cut",
		"date",
		"df",
		"dirname",
		"du",
		"echo",
		"false",
		"file",
		"grep",
		"head",
		"hostname",
		"id",
		"ls",
		"pwd",
		"sleep",
		"sort",
		"stat",
		"tail",
		"tr",
		"true",
		"uname",
		"uniq",
		"wc",
		"whoami",
	},
}
