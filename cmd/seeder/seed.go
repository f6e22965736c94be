package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/USSTM/asset-backend/internal/auth"
	"github.com/USSTM/asset-backend/internal/db"
	"github.com/USSTM/asset-backend/internal/rbac"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"gopkg.in/yaml.v3"
)

type SeedData struct {
	Departments []Department `yaml:"departments"`
	Roles       []Role       `yaml:"roles"`
	Users       []User       `yaml:"users"`
	Assets      []Asset      `yaml:"assets"`
}

type Department struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Role permissions accept any shape the role API does; they are stored
// canonically.
type Role struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Department  string         `yaml:"department"`
	Shared      bool           `yaml:"shared"`
	Permissions map[string]any `yaml:"permissions"`
}

type User struct {
	Email      string `yaml:"email"`
	Name       string `yaml:"name"`
	Password   string `yaml:"password"`
	Role       string `yaml:"role"`
	Department string `yaml:"department"`
}

type Asset struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	Location   string `yaml:"location"`
	Stock      int32  `yaml:"stock"`
	Department string `yaml:"department"`
}

func resolveFiles(file, dir string) ([]string, error) {
	if file != "" {
		return []string{file}, nil
	}
	if dir == "" {
		return nil, errors.New("must specify either --file or --dir")
	}
	return findYAMLFiles(dir)
}

func findYAMLFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAMLFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML files found in directory: %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func loadSeedData(files []string) (*SeedData, error) {
	combined := &SeedData{}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", file, err)
		}

		var fileData SeedData
		if err := yaml.Unmarshal(data, &fileData); err != nil {
			return nil, fmt.Errorf("failed to parse YAML in %s: %w", file, err)
		}

		combined.Departments = append(combined.Departments, fileData.Departments...)
		combined.Roles = append(combined.Roles, fileData.Roles...)
		combined.Users = append(combined.Users, fileData.Users...)
		combined.Assets = append(combined.Assets, fileData.Assets...)
	}

	return combined, nil
}

// Validate checks required fields, duplicates and permission documents.
// Department and role names may refer to rows already in the database, so
// they are resolved by applySeedData.
func (s *SeedData) Validate() error {
	var errs []error

	emails := make(map[string]bool)
	for _, u := range s.Users {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		switch {
		case email == "":
			errs = append(errs, errors.New("user with empty email"))
		case emails[email]:
			errs = append(errs, fmt.Errorf("duplicate user %s", email))
		case len(u.Password) < 8:
			errs = append(errs, fmt.Errorf("user %s: password must be at least 8 characters", email))
		case u.Role == "":
			errs = append(errs, fmt.Errorf("user %s: role is required", email))
		}
		emails[email] = true
	}

	codes := make(map[string]bool)
	for _, a := range s.Assets {
		switch {
		case a.Code == "" || a.Name == "":
			errs = append(errs, fmt.Errorf("asset %q: code and name are required", a.Code))
		case codes[a.Code]:
			errs = append(errs, fmt.Errorf("duplicate asset %s", a.Code))
		case a.Stock < 1:
			errs = append(errs, fmt.Errorf("asset %s: stock must be at least 1", a.Code))
		}
		codes[a.Code] = true
	}

	for _, r := range s.Roles {
		if r.Name == "" {
			errs = append(errs, errors.New("role with empty name"))
			continue
		}
		if _, err := r.document(nil); err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", r.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (s *SeedData) Summary(w io.Writer) {
	fmt.Fprintf(w, "  Departments: %d\n", len(s.Departments))
	fmt.Fprintf(w, "  Roles: %d\n", len(s.Roles))
	fmt.Fprintf(w, "  Users: %d\n", len(s.Users))
	fmt.Fprintf(w, "  Assets: %d\n", len(s.Assets))
}

// document parses the YAML permissions and checks them against catalog.
// A nil catalog only checks action names.
func (r Role) document(catalog []string) (string, error) {
	raw, err := json.Marshal(r.Permissions)
	if err != nil {
		return "", err
	}
	set, err := rbac.ParseDocument(string(raw))
	if err != nil {
		return "", err
	}
	if err := set.Validate(catalog); err != nil {
		return "", err
	}
	return set.Encode()
}

type seeder struct {
	q     *db.Queries
	out   io.Writer
	depts map[string]int64
}

func applySeedData(ctx context.Context, q *db.Queries, data *SeedData, out io.Writer) error {
	s := &seeder{q: q, out: out, depts: make(map[string]int64)}

	for _, d := range data.Departments {
		dept, err := q.CreateDepartment(ctx, db.CreateDepartmentParams{
			Code: strings.ToUpper(d.Code),
			Name: d.Name,
		})
		if err != nil {
			return fmt.Errorf("failed to create department %s: %w", d.Code, err)
		}
		s.depts[dept.Code] = dept.ID
		fmt.Fprintf(out, "created department: %s\n", dept.Code)
	}

	modules, err := q.ListActiveModules(ctx)
	if err != nil {
		return err
	}
	catalog := make([]string, 0, len(modules))
	for _, m := range modules {
		catalog = append(catalog, m.Code)
	}

	for _, r := range data.Roles {
		if err := s.createRole(ctx, r, catalog); err != nil {
			return err
		}
	}

	for _, u := range data.Users {
		if err := s.createUser(ctx, u); err != nil {
			return err
		}
	}

	for _, a := range data.Assets {
		dept, err := s.department(ctx, a.Department)
		if err != nil {
			return fmt.Errorf("asset %s: %w", a.Code, err)
		}
		if _, err := q.CreateAsset(ctx, db.CreateAssetParams{
			Code:         a.Code,
			Name:         a.Name,
			Category:     a.Category,
			Location:     a.Location,
			TotalStock:   a.Stock,
			Status:       db.AssetStatusAvailable,
			DepartmentID: dept,
		}); err != nil {
			return fmt.Errorf("failed to create asset %s: %w", a.Code, err)
		}
		fmt.Fprintf(out, "created asset: %s\n", a.Code)
	}

	fmt.Fprintln(out, "seeding completed")
	return nil
}

func (s *seeder) createRole(ctx context.Context, r Role, catalog []string) error {
	doc, err := r.document(catalog)
	if err != nil {
		return fmt.Errorf("role %s: %w", r.Name, err)
	}

	dept, err := s.department(ctx, r.Department)
	if err != nil {
		return fmt.Errorf("role %s: %w", r.Name, err)
	}

	if _, err := s.q.CreateRole(ctx, db.CreateRoleParams{
		Name:         r.Name,
		Description:  r.Description,
		Scope:        db.RoleScopeDepartment,
		DepartmentID: dept,
		IsShared:     r.Shared && !dept.Valid,
		Permissions:  doc,
		IsActive:     true,
	}); err != nil {
		return fmt.Errorf("failed to create role %s: %w", r.Name, err)
	}
	fmt.Fprintf(s.out, "created role: %s\n", r.Name)
	return nil
}

func (s *seeder) createUser(ctx context.Context, u User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))

	dept, err := s.department(ctx, u.Department)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}
	role, err := s.role(ctx, u.Role, dept)
	if err != nil {
		return fmt.Errorf("user %s: %w", email, err)
	}

	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", email, err)
	}

	if _, err := s.q.CreateUser(ctx, db.CreateUserParams{
		Email:        email,
		Name:         u.Name,
		PasswordHash: hash,
		RoleID:       role.ID,
		DepartmentID: dept,
	}); err != nil {
		return fmt.Errorf("failed to create user %s: %w", email, err)
	}
	fmt.Fprintf(s.out, "created user: %s (%s)\n", email, role.Name)
	return nil
}

// department resolves a code from this run or the database. An empty code
// means no department.
func (s *seeder) department(ctx context.Context, code string) (pgtype.Int8, error) {
	if code == "" {
		return pgtype.Int8{}, nil
	}
	code = strings.ToUpper(code)
	if id, ok := s.depts[code]; ok {
		return pgtype.Int8{Int64: id, Valid: true}, nil
	}
	dept, err := s.q.GetDepartmentByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgtype.Int8{}, fmt.Errorf("unknown department %s", code)
		}
		return pgtype.Int8{}, err
	}
	s.depts[code] = dept.ID
	return pgtype.Int8{Int64: dept.ID, Valid: true}, nil
}

// role prefers a department's own role over a shared or global one of the
// same name.
func (s *seeder) role(ctx context.Context, name string, dept pgtype.Int8) (db.Role, error) {
	if dept.Valid {
		role, err := s.q.GetRoleByName(ctx, db.GetRoleByNameParams{Name: name, DepartmentID: dept})
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return db.Role{}, err
		}
	}
	role, err := s.q.GetRoleByName(ctx, db.GetRoleByNameParams{Name: name})
	if errors.Is(err, pgx.ErrNoRows) {
		return db.Role{}, fmt.Errorf("unknown role %s", name)
	}
	return role, err
}
