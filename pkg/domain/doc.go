package domain

// domain package contains the Domain Models of mlengine.
//
// `domain/mlengine` package exposes the root object.
// Entrypoints of applications should instantiate it and reach entities from there.
//
// `domain/ENTITY.go` has entities (Domain Model types) and functions on them.
// For example, `domain/dataset.go` contains the `Dataset` entity.
//
// `domain/ENTITY/db` directory contains the database representation of the entity,
// and `domain/ENTITY/interface.go` exposes the client interface to handle it.
//
// # Entities
//
// - `dataset`: a tabular file uploaded or imported into a workspace.
// Its row and column counts and quality score are recorded alongside.
//
// - `datasource`: connection settings to an external source of tabular data
// (files, databases, object storages and data warehouses).
// Data sources are tested periodically, and their data can be imported as datasets.
//
// - `automl`: a job selecting the best algorithm for a dataset.
// Jobs are queued by the API and run by the `automl` loop.
//
// - `schema`: the version of the database schema.
