package script

// DemoSource is the reference round trip: two unrooted arrays, one string
// interned twice, then a collection that frees all three objects.
const DemoSource = `# reference round trip
push array 12
push array 12
pop
pop
intern "hola mundo"
intern "hola mundo"
expect live 3
collect
expect live 0
`

// Demo returns the parsed reference scenario.
func Demo() *Script {
	s, err := ParseString("demo", DemoSource)
	if err != nil {
		panic(err)
	}
	return s
}
