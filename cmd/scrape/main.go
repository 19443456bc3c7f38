// scrape - Kafka log event aggregation
//
// scrape reads Kafka broker logs in a single pass, classifies each line into
// event categories and reports per-category statistics.
package main

import (
	"os"

	"github.com/ccollicutt/scrape/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
