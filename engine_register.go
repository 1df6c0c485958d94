package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/password"
	"github.com/go-playground/validator/v10"
)

// Register creates an account and signs it in.
//
// The password policy runs first so a weak password is always reported with
// its full reason list, even when other fields are also invalid. The store's
// Create is the authority on duplicates; the lookup beforehand only avoids
// hashing for an email that is obviously taken.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	if report := e.policy.Check(req.Password); !report.Valid {
		err := &WeakPasswordError{Reasons: report.Errors}
		e.metricInc(MetricRegisterWeakPassword)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	req.Email = normalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := e.validate.StructCtx(ctx, req); err != nil {
		err = fmt.Errorf("%w: %s", ErrInvalidInput, validationDetail(err))
		e.metricInc(MetricRegisterInvalidInput)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	if _, err := e.store.FindByEmail(ctx, req.Email); err == nil {
		return nil, e.registerDuplicate(ctx)
	} else if !errors.Is(err, ErrUserNotFound) {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	hash, err := e.hasher.Hash(ctx, req.Password)
	if err != nil {
		if errors.Is(err, password.ErrInvalidInput) {
			err = fmt.Errorf("%w: %w", ErrInvalidInput, err)
			e.metricInc(MetricRegisterInvalidInput)
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	cred, err := e.store.Create(ctx, NewCredential{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		RoleID:       e.config.Roles.DefaultRoleID,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, e.registerDuplicate(ctx)
		}
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
		return nil, err
	}

	id := e.identityFor(cred.UserID, cred.Email, cred.RoleID)
	result, refresh, err := e.issuePair(id, "")
	if err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, cred.UserID, "", err, nil)
		return nil, err
	}
	if err := e.openFamily(ctx, refresh, cred.UserID); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, cred.UserID, refresh.Family, err, nil)
		return nil, err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, cred.UserID, refresh.Family, nil, nil)

	return result, nil
}

func (e *Engine) registerDuplicate(ctx context.Context) error {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrDuplicateEmail, nil)
	return ErrDuplicateEmail
}

// validationDetail renders validator failures as "email: email, name: required".
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+": "+fe.Tag())
	}
	return strings.Join(parts, ", ")
}
