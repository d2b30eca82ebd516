// texbake is a CLI for the offline halves of the studio: UV map and
// texture extraction, gradient baking and decal stamping.
package main

func main() {
	Execute()
}
