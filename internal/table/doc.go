// Package table parses and transforms examples tables.
//
// A table is written as delimited text, optionally prefixed by one or more
// inline property blocks:
//
//	{transformer=REPLACING, replacing=%, replacement=|}
//	{trim=false}
//	|name|value|
//	|one |1    |
//	|-- ignored row --|
//	|two |2    | # trailing comment
//
// Each property block may name a transformer. Transformers run left to right
// over the table body before the final parse. Built-in transformers pivot
// landscape tables, align columns, substitute literal text and resolve
// in-table references such as <name>.
//
// Rows shorter than the header are padded with empty cells and longer rows
// are truncated, so every row has exactly one cell per header.
package table
