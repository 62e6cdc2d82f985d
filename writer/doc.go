// Package writer serializes KoiLang statements.
//
// A [Writer] tracks the indentation of nested environments and the command
// threshold, so that its output lexes back into the statements written:
//
//	w := writer.New(os.Stdout)
//	w.Command("scene", []parser.Value{parser.StringValue("intro")}, nil)
//	w.Indent()
//	w.Text("Hello!")
//	w.Dedent()
package writer
