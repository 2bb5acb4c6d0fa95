// Package program holds the authoring model around flows: the agents a
// program defines, its named flows with their editable step trees, the
// default flow and the input variables a run must supply.
//
// Programs are plain values. The edit operations return a new Program and
// leave the receiver untouched, so editors can keep undo history by
// holding on to earlier values. Programs load from YAML or JSON files.
package program
