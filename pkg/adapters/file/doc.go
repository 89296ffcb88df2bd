// Package file reads state trees from YAML, TOML or JSON documents and keeps
// session snapshots as JSON files on disk.
//
// A state document looks like:
//
//	router:
//	  history_limit: 5
//	  trace: [transition]
//	states:
//	  - name: users
//	    url: /users?sort
//	  - name: users.detail
//	    url: /{id:int}
//	    resolve:
//	      - token: userId
//	        param: id
package file
