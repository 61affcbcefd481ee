// Package seedadmin creates the first administrator account from the
// command line.
package seedadmin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/boardforge/internal/common"
	"github.com/dmitrijs2005/boardforge/internal/server/models"
)

// Registrar is implemented by services.AuthService.
type Registrar interface {
	Register(ctx context.Context, email, password string) (*models.UserProfile, error)
}

var errPasswordMismatch = errors.New("passwords do not match")

// Run asks for the admin email (unless given) and a password entered twice,
// then registers the account. An existing account is reported and left as is.
func Run(ctx context.Context, r Registrar, email string, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	if email == "" {
		var err error
		email, err = GetSimpleText(reader, "Enter admin email", out)
		if err != nil {
			return err
		}
	}

	password, err := GetPassword("Enter password", out)
	if err != nil {
		return err
	}
	defer wipe(password)

	confirm, err := GetPassword("Repeat password", out)
	if err != nil {
		return err
	}
	defer wipe(confirm)

	if string(password) != string(confirm) {
		return errPasswordMismatch
	}

	profile, err := r.Register(ctx, email, string(password))
	if errors.Is(err, common.ErrorAlreadyExists) {
		fmt.Fprintf(out, "User %s already exists, nothing to do\n", email)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Created admin %s (id=%d)\n", profile.Email, profile.ID)
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
