package service

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/lib/retry"
	"github.com/deppfellow/layered-api/internal/model"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/validation"
)

// UserService owns the user lifecycle and avatars.
//
// Reads, file writes and deletes are retried on BackendUnavailable. Creates
// and updates are never retried.
type UserService struct {
	users repository.UserRepository
	files repository.FileRepository
	tasks repository.TaskQueue
	retry retry.Policy
	newID func() string
}

func NewUserService(repos *repository.Repositories, policy retry.Policy) *UserService {
	return &UserService{
		users: repos.Users,
		files: repos.Files,
		tasks: repos.Tasks,
		retry: policy,
		newID: uuid.NewString,
	}
}

// decode rejects anything that did not come out of the validation gate.
func decode(op string, in *validation.Input, dst any) error {
	if !in.Valid() {
		return errs.NewInternalError(op, validation.ErrInvalidInput)
	}
	if err := in.Decode(dst); err != nil {
		return errs.NewInternalError(op, err)
	}
	return nil
}

func (s *UserService) findByID(ctx context.Context, id string) (*model.User, error) {
	return retry.Do(ctx, s.retry, "users.find_by_id", func(ctx context.Context) (*model.User, error) {
		return s.users.FindByID(ctx, id)
	})
}

func (s *UserService) findByEmail(ctx context.Context, email string) (*model.User, error) {
	return retry.Do(ctx, s.retry, "users.find_by_email", func(ctx context.Context) (*model.User, error) {
		return s.users.FindByEmail(ctx, email)
	})
}

// emailAvailable fails with ConflictAlreadyExists when a user other than
// selfID holds email. The adapter re-checks atomically on write.
func (s *UserService) emailAvailable(ctx context.Context, email, selfID string) error {
	existing, err := s.findByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return errs.NewConflictError("A user with this email already exists", "email")
	case err == nil, errs.KindOf(err) == errs.KindNotFound:
		return nil
	default:
		return err
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeName trims the name; whitespace alone does not count as a name.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.NewValidationError(map[string]string{"name": "must not be blank"})
	}
	return name, nil
}

// avatarTypes are the raster formats served back as avatars. Vector and
// scriptable formats such as SVG are refused.
var avatarTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// RegisterUser creates a user and schedules the welcome email. Failing to
// schedule the email does not fail the registration.
func (s *UserService) RegisterUser(ctx context.Context, in *validation.Input) (*model.User, error) {
	const op = "service.register_user"

	var p model.RegisterUserPayload
	if err := decode(op, in, &p); err != nil {
		return nil, err
	}

	name, err := normalizeName(p.Name)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		ID:    s.newID(),
		Name:  name,
		Email: normalizeEmail(p.Email),
	}

	if err := s.emailAvailable(ctx, user.Email, ""); err != nil {
		return nil, errs.Wrap(err, op, "")
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}

	if err := s.tasks.EnqueueWelcomeEmail(ctx, created.Email, created.Name); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", created.ID).Msg("failed to enqueue welcome email")
	}

	zerolog.Ctx(ctx).Info().Str("user_id", created.ID).Msg("user registered")
	return created, nil
}

// GetUser returns one user.
func (s *UserService) GetUser(ctx context.Context, in *validation.Input) (*model.User, error) {
	const op = "service.get_user"

	var p model.UserIDPayload
	if err := decode(op, in, &p); err != nil {
		return nil, err
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}
	return user, nil
}

// UpdateUser changes name and/or email. An email change is checked for
// uniqueness first; the adapter's own check on write is authoritative.
func (s *UserService) UpdateUser(ctx context.Context, in *validation.Input) (*model.User, error) {
	const op = "service.update_user"

	var p model.UpdateUserPayload
	if err := decode(op, in, &p); err != nil {
		return nil, err
	}
	if p.Name == nil && p.Email == nil {
		return nil, errs.NewServiceError("Nothing to update: provide name or email")
	}
	var name string
	if p.Name != nil {
		n, err := normalizeName(*p.Name)
		if err != nil {
			return nil, err
		}
		name = n
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}

	if p.Name != nil {
		user.Name = name
	}
	if p.Email != nil {
		email := normalizeEmail(*p.Email)
		if email != user.Email {
			if err := s.emailAvailable(ctx, email, user.ID); err != nil {
				return nil, errs.Wrap(err, op, "")
			}
			user.Email = email
		}
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}
	return updated, nil
}

// DeleteUser removes the user's avatar, then the user.
func (s *UserService) DeleteUser(ctx context.Context, in *validation.Input) error {
	const op = "service.delete_user"

	var p model.UserIDPayload
	if err := decode(op, in, &p); err != nil {
		return err
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return errs.Wrap(err, op, "")
	}

	if user.AvatarKey != "" {
		if err := s.deleteFile(ctx, user.AvatarKey); err != nil {
			return errs.Wrap(err, op, "Failed to delete the user's avatar")
		}
	}

	err = retry.Run(ctx, s.retry, "users.delete", func(ctx context.Context) error {
		return s.users.Delete(ctx, user.ID)
	})
	if err != nil {
		return errs.Wrap(err, op, "")
	}
	return nil
}

// deleteFile removes a stored object. An object that is already gone counts
// as deleted.
func (s *UserService) deleteFile(ctx context.Context, key string) error {
	err := retry.Run(ctx, s.retry, "files.delete", func(ctx context.Context) error {
		return s.files.Delete(ctx, key)
	})
	if errs.KindOf(err) == errs.KindNotFound {
		return nil
	}
	return err
}

// avatarKey is unique per upload, so replacing an avatar never overwrites
// the object the user still references.
func (s *UserService) avatarKey(userID string) string {
	return "avatars/" + userID + "/" + s.newID()
}

// PutAvatar stores an image and attaches it to the user. If attaching fails
// the new object is deleted again and the attach error is returned with its
// kind. The previous avatar is removed only after the user points at the new
// one.
func (s *UserService) PutAvatar(ctx context.Context, in *validation.Input) (*model.User, error) {
	const op = "service.put_avatar"

	var p model.PutAvatarPayload
	if err := decode(op, in, &p); err != nil {
		return nil, err
	}

	data, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return nil, errs.NewServiceError("Avatar data is not valid base64")
	}
	mime := mimetype.Detect(data)
	if !avatarTypes[mime.String()] {
		return nil, errs.NewServiceError("Avatar must be a PNG, JPEG, GIF or WebP image, got " + mime.String()).
			WithDetail("data", "must be an image")
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}

	key := s.avatarKey(user.ID)
	err = retry.Run(ctx, s.retry, "files.put", func(ctx context.Context) error {
		return s.files.Put(ctx, key, data, mime.String())
	})
	if err != nil {
		return nil, errs.Wrap(err, op, "Failed to store avatar")
	}

	previous := user.AvatarKey
	user.AvatarKey = key
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		// compensate with a context that survives the request deadline
		if cerr := s.deleteFile(context.WithoutCancel(ctx), key); cerr != nil {
			zerolog.Ctx(ctx).Error().Err(cerr).Str("key", key).Msg("failed to remove orphaned avatar")
		}
		return nil, errs.Wrap(err, op, "Failed to attach avatar")
	}

	if previous != "" {
		if err := s.deleteFile(ctx, previous); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", previous).Msg("failed to remove replaced avatar")
		}
	}
	return updated, nil
}

// GetAvatar returns the user's avatar file.
func (s *UserService) GetAvatar(ctx context.Context, in *validation.Input) (*model.File, error) {
	const op = "service.get_avatar"

	var p model.UserIDPayload
	if err := decode(op, in, &p); err != nil {
		return nil, err
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}
	if user.AvatarKey == "" {
		return nil, errs.NewNotFoundError("User has no avatar")
	}

	file, err := retry.Do(ctx, s.retry, "files.get", func(ctx context.Context) (*model.File, error) {
		return s.files.Get(ctx, user.AvatarKey)
	})
	if err != nil {
		return nil, errs.Wrap(err, op, "")
	}
	return file, nil
}

// DeleteAvatar detaches the avatar from the user, then deletes the object.
func (s *UserService) DeleteAvatar(ctx context.Context, in *validation.Input) error {
	const op = "service.delete_avatar"

	var p model.UserIDPayload
	if err := decode(op, in, &p); err != nil {
		return err
	}

	user, err := s.findByID(ctx, p.ID)
	if err != nil {
		return errs.Wrap(err, op, "")
	}
	if user.AvatarKey == "" {
		return errs.NewNotFoundError("User has no avatar")
	}

	key := user.AvatarKey
	user.AvatarKey = ""
	if _, err := s.users.Update(ctx, user); err != nil {
		return errs.Wrap(err, op, "")
	}

	if err := s.deleteFile(ctx, key); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to remove detached avatar")
	}
	return nil
}
