package accountdefaults

import (
	"context"
	"fmt"
	"testing"

	auditdomain "github.com/baytretail/core/internal/audit/domain"
	companydomain "github.com/baytretail/core/internal/company/domain"
	companyrepo "github.com/baytretail/core/internal/company/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type nopAudit struct{}

func (nopAudit) Record(ctx context.Context, tx *gorm.DB, companyID snowflake.ID, actorType auditdomain.ActorType, actorID *string, action, entityType string, entityID *string, details map[string]any) error {
	return nil
}

func (nopAudit) List(ctx context.Context, companyID snowflake.ID, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	return auditdomain.ListAuditLogResponse{}, nil
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&companydomain.Company{},
		&companydomain.CompanyCoaAccount{},
		&companydomain.CompanyAccountDefaults{},
		&companydomain.AccountRole{},
	))
	return db
}

func newResolver(db *gorm.DB, node *snowflake.Node) (*Resolver, companydomain.Repository) {
	repo := companyrepo.New(db)
	return New(repo, nopAudit{}, node), repo
}

func TestHealViaCandidateCode(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	companyID := node.Generate()

	require.NoError(t, db.Create(&companydomain.CompanyCoaAccount{
		ID: node.Generate(), CompanyID: companyID, Code: "4111", Name: "Accounts Receivable", Type: "asset", IsPostable: true,
	}).Error)

	resolver, repo := newResolver(db, node)
	ctx := context.Background()

	account, err := resolver.Resolve(ctx, db, repo, companyID, companydomain.RoleAR)
	require.NoError(t, err)
	require.Equal(t, "4111", account.Code)

	mapping, err := repo.GetAccountDefault(ctx, companyID, companydomain.RoleAR)
	require.NoError(t, err)
	require.NotNil(t, mapping)
}

func TestHealViaFallbackRole(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	companyID := node.Generate()

	invAdjID := node.Generate()
	require.NoError(t, db.Create(&companydomain.CompanyCoaAccount{
		ID: invAdjID, CompanyID: companyID, Code: "6020", Name: "Inventory Adjustments", Type: "expense", IsPostable: true,
	}).Error)

	resolver, repo := newResolver(db, node)
	ctx := context.Background()

	require.NoError(t, resolver.heal(ctx, db, repo, companyID, companydomain.RoleInvAdj))
	require.NoError(t, resolver.heal(ctx, db, repo, companyID, companydomain.RoleShrinkage))

	mapping, err := repo.GetAccountDefault(ctx, companyID, companydomain.RoleShrinkage)
	require.NoError(t, err)
	require.NotNil(t, mapping)
	require.Equal(t, invAdjID, mapping.AccountID)
}

func TestHealCreatesSyntheticOpeningBalanceAccount(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	companyID := node.Generate()

	resolver, repo := newResolver(db, node)
	ctx := context.Background()

	account, err := resolver.Resolve(ctx, db, repo, companyID, companydomain.RoleOpeningBalance)
	require.NoError(t, err)
	require.Equal(t, openingBalanceAccountCode, account.Code)
	require.Equal(t, openingBalanceAccountName, account.Name)
}

func TestHealNeverOverwritesExistingMapping(t *testing.T) {
	db := setupDB(t)
	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	companyID := node.Generate()

	original := node.Generate()
	other := node.Generate()
	require.NoError(t, db.Create(&companydomain.CompanyCoaAccount{
		ID: original, CompanyID: companyID, Code: "4111", Name: "AR Original", Type: "asset", IsPostable: true,
	}).Error)
	require.NoError(t, db.Create(&companydomain.CompanyCoaAccount{
		ID: other, CompanyID: companyID, Code: "4112", Name: "AR Other", Type: "asset", IsPostable: true,
	}).Error)

	resolver, repo := newResolver(db, node)
	ctx := context.Background()

	require.NoError(t, repo.SetAccountDefault(ctx, companydomain.CompanyAccountDefaults{
		CompanyID: companyID, RoleCode: companydomain.RoleAR, AccountID: original,
	}))

	require.NoError(t, resolver.heal(ctx, db, repo, companyID, companydomain.RoleAR))

	mapping, err := repo.GetAccountDefault(ctx, companyID, companydomain.RoleAR)
	require.NoError(t, err)
	require.Equal(t, original, mapping.AccountID)
}
