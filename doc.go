/*
Safe query composition and statement caching for SQLite. You write plain SQL
with substitution slots; values never end up in the SQL text. Queries nest
inside other queries without renumbering or misaligning parameters. Execution
goes through a connection facade that compiles each distinct source text once
and reuses the compiled statement.

Key Features

• You write plain SQL. There's no DSL in Go.

• `{}` slots become "?" placeholders, and the values become parameters, in
order.

• `${}` slots embed another query: its SQL verbatim and its parameters in
order. Only queries produced by this package can be embedded.

• Compiled statements are cached per connection by exact source text.

• Results are plain records, optionally decoded into structs by `db` tag.

Example

	db, err := sqlq.Open(`:memory:`)
	if err != nil {
		return err
	}
	defer db.Close()

	err = db.Execute(sqlq.Q(`create table users (id integer primary key, name text)`))
	if err != nil {
		return err
	}

	_, err = db.Run(sqlq.Q(`insert into users (name) values ({})`, `Alice`))
	if err != nil {
		return err
	}

	filter := sqlq.Q(`where name = {}`, `Alice`)
	rec, ok, err := db.Get(sqlq.Q(`select * from users ${}`, filter))

Without templates, the same composition is available from pre-split
fragments, like a tagged template literal. The fragment before a nested query
ends with the raw marker "$":

	query, err := sqlq.Sql([]string{`select * from users $`, ``}, filter)

See `Sql` for the composition rules, `StmtCache` for caching, and `DB` for
execution.
*/
package sqlq
