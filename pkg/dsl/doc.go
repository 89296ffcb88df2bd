/*
Package dsl provides a fluent Go API for declaring state trees.

It is an alternative to loading declarations from YAML, TOML or JSON files,
useful for tests and for trees built in code.

Example usage:

	b := dsl.New()

	b.State("users").
		URL("/users?q").
		Resolve("list", fetchUsers, "q")

	b.State("users.detail").
		URL("/{id:int}").
		Resolve("user", fetchUser, "id").
		OnEnter(trackVisit)

	reg, err := b.Build()
	// ... pass reg to waypoint.New(waypoint.WithRegistry(reg))
*/
package dsl
