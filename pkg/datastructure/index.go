package datastructure

import "github.com/fieldcortex/terrane/pkg"

// Index aliases pkg.Index: the vertex id is defined in the dependency-free
// root package so the spatial index can reference it without importing
// datastructure back (datastructure already imports spatialindex).
type Index = pkg.Index

const InvalidIndex = pkg.InvalidIndex
