// Command pmemctl creates and inspects pmemkit pools and edits the int64
// vector kept at a pool's root.
package main

func main() {
	execute()
}
