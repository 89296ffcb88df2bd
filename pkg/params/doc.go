// Package params defines typed state parameters.
//
// A Type knows how to encode a value to its URL string form, decode it back,
// compare two values and check a value. The built-in types are string, path,
// query, hash, int, bool, date, json and any; custom types are added with
// Types.Define.
//
// A Param is a compiled parameter of a state: its Type (possibly wrapped for
// array values), where the value lives, whether it is optional, dynamic or
// inherited, and how it is squashed out of URLs when equal to its default.
//
//	f := params.NewFactory()
//	page, err := f.New("page", nil, params.Search, params.Declared{Type: "int", Value: 1})
//	v, _ := page.Value("")   // 1, the default
//	v, _ = page.Value("7")   // 7
//
// Changed and Equals compare two value sets through each param's Type, which
// is how transitions decide whether a state's parameters moved.
package params
