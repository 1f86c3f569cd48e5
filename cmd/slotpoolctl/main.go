// Command slotpoolctl inspects and exercises slot pools on the host.
package main

func main() {
	execute()
}
