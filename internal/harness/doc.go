// Package harness runs query conformance scenarios.
//
// A scenario is a YAML file naming a schema, the SQL that prepares a fresh
// SQLite database, and a list of steps. Each step runs one query through
// engine.Engine in a given mode (find, one, count, page or explain) and
// checks the outcome against the step's expect clause.
//
//	name: adults_by_name
//	description: People aged 30 or more, sorted by name
//	schema: ../schema.cue
//	setup:
//	  - file: ../setup.sql
//	steps:
//	  - name: adults
//	    query:
//	      root: Pessoa
//	      fields: nome
//	      sort: nome
//	      where:
//	        - {path: idade, expr: ">=30"}
//	    expect:
//	      count: 3
//	      results:
//	        - {nome: Ana Lima}
//
// Every scenario runs against its own database under a temporary directory,
// and query ids come from a sequence generator so step logs are stable.
// RunWithGolden snapshots the outcome of every step into a goldie fixture.
package harness
