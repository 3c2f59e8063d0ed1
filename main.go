package main

import "github.com/alirogz/goshop-partialpay/app"

func main() {
	app.Run()
}
