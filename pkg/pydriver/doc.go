// Package pydriver runs the sokol bindgen Python module in a long-lived interpreter process.
//
// The generator keeps its output in module-level state between prepare(), gen() and finalize(),
// so all calls of a run have to reach the same interpreter. The driver starts a small Python
// loop (driver.py) in the bindgen directory and exchanges one JSON document per line with it:
//
//	-> {"id": "...", "op": "gen", "args": {"header": "../sokol_gfx.h", "prefix": "sg_", "deps": []}}
//	<- {"id": "...", "ok": false, "error": "...", "trace": "Traceback ..."}
//
// Everything the module prints ends up on the interpreter's stderr and is forwarded to the logger.
package pydriver
