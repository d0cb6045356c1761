package account

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
)

// UserLookup answers whether the directory already holds a uid.
type UserLookup interface {
	UserExists(ctx context.Context, uid string) (bool, error)
}

// Checker rejects usernames that are already taken somewhere.
type Checker interface {
	Check(ctx context.Context, uid string) error
}

// CollisionChecker looks a username up in the directory, the home directory
// root and the mail alias file.
type CollisionChecker struct {
	users       UserLookup
	homeRoot    string
	aliasesFile string // empty disables the alias check
}

func NewCollisionChecker(users UserLookup, homeRoot, aliasesFile string) *CollisionChecker {
	return &CollisionChecker{
		users:       users,
		homeRoot:    homeRoot,
		aliasesFile: aliasesFile,
	}
}

// Check runs the three lookups concurrently. When uid is taken in more than
// one place the directory wins, then home, then aliases.
func (c *CollisionChecker) Check(ctx context.Context, uid string) error {
	var inDirectory, inHome, inAliases bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := c.users.UserExists(gctx, uid)
		if err != nil {
			return fmt.Errorf("look up %s in directory: %w", uid, err)
		}
		inDirectory = found
		return nil
	})
	g.Go(func() error {
		found, err := homeExists(c.homeRoot, uid)
		if err != nil {
			return err
		}
		inHome = found
		return nil
	})
	g.Go(func() error {
		if c.aliasesFile == "" {
			return nil
		}
		found, err := aliasExists(c.aliasesFile, uid)
		if err != nil {
			return err
		}
		inAliases = found
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	switch {
	case inDirectory:
		return &CollisionError{Source: SourceDirectory, UID: uid, Location: "LDAP"}
	case inHome:
		return &CollisionError{Source: SourceHome, UID: uid, Location: c.homeRoot}
	case inAliases:
		return &CollisionError{Source: SourceAliases, UID: uid, Location: c.aliasesFile}
	}
	return nil
}

func homeExists(homeRoot, uid string) (bool, error) {
	_, err := os.Stat(filepath.Join(homeRoot, uid))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat home directory for %s: %w", uid, err)
	}
}

// aliasExists reports whether uid appears as a whole token (alias name or
// recipient) on any non-comment line of an aliases(5) file.
func aliasExists(path, uid string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open aliases file: %w", err)
	}
	defer file.Close()

	isSeparator := func(r rune) bool {
		return unicode.IsSpace(r) || r == ':' || r == ','
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		for _, token := range strings.FieldsFunc(line, isSeparator) {
			if token == uid {
				return true, nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("error reading aliases file: %w", err)
	}
	return false, nil
}
