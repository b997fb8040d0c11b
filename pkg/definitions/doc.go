// Package definitions holds the config definitions known to the resolver.
//
// Built-in definitions are fixed. A location adds custom definitions, or
// overrides fields of existing ones, through the reserved "meta" config:
//
//	default = {
//	    "meta": {
//	        "title": {"env": "server-and-client"},
//	        "tags": {"env": "server-only", "cumulative": True},
//	    },
//	}
//
// Every meta entry must set env. An effect is only accepted for config-only
// definitions.
package definitions
