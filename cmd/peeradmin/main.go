// Command peeradmin manages the registry of peer services taking part in
// the mutual handshake. Registration is an out-of-band step: rows created
// here are picked up by the server's next rotation round.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/passlink/internal/server/config"
	"github.com/dmitrijs2005/passlink/internal/server/models"
	"github.com/dmitrijs2005/passlink/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: peeradmin <command> [flags]

Commands:
  register -name <name> -url <callback-url> [-dsn <dsn>]
  list [-dsn <dsn>]
  deactivate -name <name> [-dsn <dsn>]
  activate -name <name> [-dsn <dsn>]
`)
	os.Exit(2)
}

func openDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		cfg := &config.Config{}
		cfg.LoadDefaults()
		dsn = cfg.DatabaseDSN
	}
	return sql.Open("pgx", dsn)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		name := fs.String("name", "", "peer service name")
		url := fs.String("url", "", "peer callback URL")
		dsn := fs.String("dsn", "", "database DSN")
		_ = fs.Parse(args)
		if *name == "" || *url == "" {
			usage()
		}
		run(ctx, *dsn, func(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) error {
			peer := &models.AuthorizedAPI{
				ID:          uuid.NewString(),
				Name:        *name,
				CallbackURL: *url,
				Status:      models.PeerStatusActive,
			}
			if err := rm.Peers(db).Create(ctx, peer); err != nil {
				return err
			}
			fmt.Printf("registered %s (%s)\n", peer.Name, peer.ID)
			return nil
		})

	case "list":
		fs := flag.NewFlagSet("list", flag.ExitOnError)
		dsn := fs.String("dsn", "", "database DSN")
		_ = fs.Parse(args)
		run(ctx, *dsn, func(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) error {
			list, err := rm.Peers(db).List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSTATUS\tVALIDATED\tLAST ACCESS\tCALLBACK")
			for _, p := range list {
				fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\n",
					p.Name, p.Status, p.TokenValidated, p.LastAccess, p.CallbackURL)
			}
			return w.Flush()
		})

	case "deactivate", "activate":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "peer service name")
		dsn := fs.String("dsn", "", "database DSN")
		_ = fs.Parse(args)
		if *name == "" {
			usage()
		}
		status := models.PeerStatusInactive
		if cmd == "activate" {
			status = models.PeerStatusActive
		}
		run(ctx, *dsn, func(ctx context.Context, db *sql.DB, rm repomanager.RepositoryManager) error {
			if err := rm.Peers(db).SetStatus(ctx, *name, status); err != nil {
				return err
			}
			fmt.Printf("%s is now %s\n", *name, status)
			return nil
		})

	default:
		usage()
	}
}

func run(ctx context.Context, dsn string, fn func(context.Context, *sql.DB, repomanager.RepositoryManager) error) {
	db, err := openDB(dsn)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migrations error: %v", err)
	}

	if err := fn(ctx, db, rm); err != nil {
		log.Fatalf("%v", err)
	}
}
