// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package. Importing
// it makes the following storage kinds available at runtime:
//
//   - "postgres"
//   - "sqlite"
//   - "mssql"
//
// Binaries that only need a subset of backends can blank-import the specific
// backend packages instead.
package all

import (
	_ "github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage/mssql"
	_ "github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage/postgres"
	_ "github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/storage/sqlite"
)
