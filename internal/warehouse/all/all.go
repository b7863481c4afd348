// Package all wires all built-in warehouse backends into the factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the warehouse package.
//
// Importing this package makes the following warehouse kinds available at
// runtime:
//
//   - "postgres" (recon/internal/warehouse/postgres)
//   - "sqlite"   (recon/internal/warehouse/sqlite)
//   - "mssql"    (recon/internal/warehouse/mssql)
//   - "mysql"    (recon/internal/warehouse/mysql)
//
// Typical usage (in cmd/recon/main.go or a similar wiring layer):
//
//	import (
//	    _ "recon/internal/warehouse/all" // enable all built-in backends
//
//	    "recon/internal/warehouse"
//	)
//
//	repo, err := warehouse.New(ctx, warehouse.Config{
//	    Kind:   run.Warehouse.Kind,
//	    DSN:    run.Warehouse.DSN,
//	    Schema: run.Warehouse.Schema,
//	})
//
// A binary that needs only a subset of backends can import the required
// backend packages directly instead of this one.
package all

import (
	_ "recon/internal/warehouse/mssql"
	_ "recon/internal/warehouse/mysql"
	_ "recon/internal/warehouse/postgres"
	_ "recon/internal/warehouse/sqlite"
)
