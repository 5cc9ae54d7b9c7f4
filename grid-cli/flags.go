package gridcli

import (
	"time"

	"github.com/urfave/cli/v2"
)

var CommonOpts struct {
	Port            int
	StoreURI        string
	StoreDatabase   string
	StoreCollection string
	SeedRows        int
	Demo            bool
	DemoInterval    time.Duration
	DemoPersist     bool
	NoEcho          bool
	WriteWait       time.Duration
}

var PortFlag = cli.IntFlag{
	Name:        "port",
	Usage:       "port to listen on",
	Value:       3001,
	EnvVars:     []string{"PORT"},
	Destination: &CommonOpts.Port,
}
var StoreURIFlag = cli.StringFlag{
	Name:        "store-uri",
	Usage:       "document store connection string",
	Value:       "mongodb://localhost:27017",
	EnvVars:     []string{"STORE_URI"},
	Destination: &CommonOpts.StoreURI,
}
var StoreDatabaseFlag = cli.StringFlag{
	Name:        "store-database",
	Usage:       "document store database name",
	Value:       "griddemo",
	EnvVars:     []string{"STORE_DATABASE"},
	Destination: &CommonOpts.StoreDatabase,
}
var StoreCollectionFlag = cli.StringFlag{
	Name:        "store-collection",
	Usage:       "document store collection name",
	Value:       "rows",
	EnvVars:     []string{"STORE_COLLECTION"},
	Destination: &CommonOpts.StoreCollection,
}
var SeedRowsFlag = cli.IntFlag{
	Name:        "seed-rows",
	Usage:       "rows to seed into an empty store on first connect",
	Value:       10000,
	EnvVars:     []string{"SEED_ROWS"},
	Destination: &CommonOpts.SeedRows,
}
var DemoFlag = cli.BoolFlag{
	Name:        "demo",
	Usage:       "whether to run the synthetic update generator",
	Value:       false,
	EnvVars:     []string{"DEMO"},
	Destination: &CommonOpts.Demo,
}
var DemoIntervalFlag = cli.DurationFlag{
	Name:        "demo-interval",
	Usage:       "interval between synthetic updates",
	Value:       2 * time.Second,
	EnvVars:     []string{"DEMO_INTERVAL"},
	Destination: &CommonOpts.DemoInterval,
}
var DemoPersistFlag = cli.BoolFlag{
	Name:        "demo-persist",
	Usage:       "whether synthetic updates are also persisted",
	Value:       false,
	EnvVars:     []string{"DEMO_PERSIST"},
	Destination: &CommonOpts.DemoPersist,
}
var NoEchoFlag = cli.BoolFlag{
	Name:        "no-echo",
	Usage:       "whether to exclude the originating client from broadcast",
	Value:       false,
	EnvVars:     []string{"NO_ECHO"},
	Destination: &CommonOpts.NoEcho,
}
var WriteWaitFlag = cli.DurationFlag{
	Name:        "write-wait",
	Usage:       "per-connection send deadline",
	Value:       10 * time.Second,
	EnvVars:     []string{"WRITE_WAIT"},
	Destination: &CommonOpts.WriteWait,
}

var CommonFlags = []cli.Flag{
	&PortFlag,
	&StoreURIFlag,
	&StoreDatabaseFlag,
	&StoreCollectionFlag,
	&SeedRowsFlag,
	&DemoFlag,
	&DemoIntervalFlag,
	&DemoPersistFlag,
	&NoEchoFlag,
	&WriteWaitFlag,
}
