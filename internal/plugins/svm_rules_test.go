package plugins

import (
	"context"
	"testing"

	"github.com/JijoJohny/SolGuard/internal/model"
	"github.com/JijoJohny/SolGuard/internal/syntax"
)

func mustParse(t *testing.T, src string) *syntax.Tree {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), "program/src/lib.rs", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return tree
}

func countRule(vs []model.Vulnerability, id string) int {
	n := 0
	for _, v := range vs {
		if v.RuleID == id {
			n++
		}
	}
	return n
}

func TestWithdrawWithoutChecks(t *testing.T) {
	tree := mustParse(t, "fn withdraw(account: AccountInfo) { account.lamports -= amount; }\n")
	vs, failures := Builtin().Run(tree)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	want := map[string]model.Severity{
		"OWNER-CHECK":          model.SeverityHigh,
		"SIGNER-CHECK":         model.SeverityHigh,
		"UNCHECKED-ARITHMETIC": model.SeverityMedium,
	}
	if len(vs) < 3 {
		t.Fatalf("expected at least 3 findings, got %d: %+v", len(vs), vs)
	}
	for id, sev := range want {
		found := false
		for _, v := range vs {
			if v.RuleID != id {
				continue
			}
			found = true
			if v.Severity != sev {
				t.Errorf("%s: severity %s, want %s", id, v.Severity, sev)
			}
			if v.Location.Line != 1 || v.Location.Column < 1 {
				t.Errorf("%s: location %v, want line 1", id, v.Location)
			}
			if v.Location.File != "program/src/lib.rs" {
				t.Errorf("%s: file %q", id, v.Location.File)
			}
		}
		if !found {
			t.Errorf("missing %s finding", id)
		}
	}
}

func TestMissingOwnerCheck(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "no_accounts",
			src:  "fn add(a: u64, b: u64) -> u64 { a + b }\n",
			want: 0,
		},
		{
			name: "owner_compared",
			src: `fn withdraw(account: AccountInfo, program_id: &Pubkey) -> ProgramResult {
    if account.owner != program_id {
        return Err(ProgramError::IncorrectProgramId);
    }
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "owner_macro",
			src: `fn withdraw(account: &AccountInfo, program_id: &Pubkey) -> ProgramResult {
    assert_eq!(account.owner, program_id);
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "owner_helper",
			src: `fn withdraw(account: &AccountInfo, program_id: &Pubkey) -> ProgramResult {
    assert_owned_by(account, program_id)?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "unchecked_reference",
			src: `fn close(target: &AccountInfo, dest: &AccountInfo) -> ProgramResult {
    if target.owner != dest.key {
        return Ok(());
    }
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "accounts_slice",
			src: `pub fn process_instruction(program_id: &Pubkey, accounts: &[AccountInfo], data: &[u8]) -> ProgramResult {
    let accounts_iter = &mut accounts.iter();
    let vault = next_account_info(accounts_iter)?;
    let state = State::try_from_slice(&vault.data.borrow())?;
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "anchor_typed_accounts",
			src: `pub fn update(ctx: Context<Update>, value: u64) -> Result<()> {
    ctx.accounts.state.value = value;
    Ok(())
}
`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmMissingOwnerCheck{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestMissingOwnerCheckLocatesFirstUse(t *testing.T) {
	src := `fn process(vault: AccountInfo) -> ProgramResult {
    msg!("start");
    let data = vault.data.borrow();
    Ok(())
}
`
	got := (&svmMissingOwnerCheck{}).Analyze(mustParse(t, src))
	if len(got) != 1 {
		t.Fatalf("got %d findings", len(got))
	}
	if got[0].Location.Line != 3 || got[0].Location.Column != 5 {
		t.Errorf("location %v, want line 3 column 5", got[0].Location)
	}
}

func TestMissingSignerCheck(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "signer_checked_first",
			src: `fn withdraw(authority: AccountInfo, vault: AccountInfo, amount: u64) -> ProgramResult {
    if !authority.is_signer {
        return Err(ProgramError::MissingRequiredSignature);
    }
    **vault.try_borrow_mut_lamports()? -= amount;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "signer_checked_after_write",
			src: `fn withdraw(authority: AccountInfo, vault: AccountInfo, amount: u64) -> ProgramResult {
    **vault.try_borrow_mut_lamports()? -= amount;
    if !authority.is_signer {
        return Err(ProgramError::MissingRequiredSignature);
    }
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "read_only",
			src: `fn inspect(vault: AccountInfo) -> u64 {
    vault.lamports()
}
`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmMissingSignerCheck{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestPDAValidation(t *testing.T) {
	unchecked := `fn settle(vault: AccountInfo, program_id: &Pubkey) -> ProgramResult {
    let (pda, bump) = Pubkey::find_program_address(&[b"vault"], program_id);
    Ok(())
}
`
	checked := `fn settle(vault: AccountInfo, program_id: &Pubkey) -> ProgramResult {
    let (pda, _bump) = Pubkey::find_program_address(&[b"vault"], program_id);
    if pda != *vault.key {
        return Err(ProgramError::InvalidSeeds);
    }
    Ok(())
}
`
	got := (&svmPDAValidation{}).Analyze(mustParse(t, unchecked))
	if len(got) != 1 {
		t.Fatalf("unchecked: got %d findings", len(got))
	}
	if got[0].Location.Line != 2 {
		t.Errorf("unchecked: line %d, want 2", got[0].Location.Line)
	}
	if got := (&svmPDAValidation{}).Analyze(mustParse(t, checked)); len(got) != 0 {
		t.Errorf("checked: got %d findings: %+v", len(got), got)
	}
}

func TestSysvarSpoofing(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "from_account_info",
			src: `fn check_time(clock_info: AccountInfo) -> ProgramResult {
    let clock = Clock::from_account_info(&clock_info)?;
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "key_validated",
			src: `fn check_time(clock_info: AccountInfo) -> ProgramResult {
    if !sysvar::clock::check_id(clock_info.key) {
        return Err(ProgramError::InvalidArgument);
    }
    let clock = Clock::from_account_info(&clock_info)?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "runtime_accessor",
			src: `fn check_time() -> ProgramResult {
    let clock = Clock::get()?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "unchecked_introspection",
			src: `fn verify(ix_sysvar: AccountInfo) -> ProgramResult {
    let ix = load_instruction_at(0, &ix_sysvar.data.borrow())?;
    Ok(())
}
`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmSysvarSpoofing{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestUncheckedArithmetic(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "checked_add",
			src: `fn deposit(vault: &mut Vault, amount: u64) -> Result<()> {
    vault.amount = vault.amount.checked_add(amount).ok_or(ErrorCode::Overflow)?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "plain_add",
			src: `fn deposit(vault: &mut Vault, amount: u64) {
    vault.amount = vault.amount + amount;
}
`,
			want: 1,
		},
		{
			name: "nested_counts_once",
			src: `fn fees(a: u64, b: u64) -> u64 {
    let total = a + b + fee_amount;
    total
}
`,
			want: 1,
		},
		{
			name: "non_balance_counter",
			src: `fn bump(i: usize) -> usize {
    i + 1
}
`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmUncheckedArithmetic{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestArbitraryCPI(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "account_program_id",
			src: `fn forward(program: AccountInfo, from: AccountInfo) -> ProgramResult {
    let ix = Instruction { program_id: *program.key, accounts: vec![], data: vec![] };
    invoke(&ix, &[from.clone()])?;
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "validated_program",
			src: `fn forward(program: AccountInfo, from: AccountInfo) -> ProgramResult {
    if program.key != &spl_token::id() {
        return Err(ProgramError::IncorrectProgramId);
    }
    let ix = Instruction { program_id: *program.key, accounts: vec![], data: vec![] };
    invoke(&ix, &[from.clone()])?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "constant_program",
			src: `fn forward(from: AccountInfo) -> ProgramResult {
    let ix = Instruction { program_id: spl_token::id(), accounts: vec![], data: vec![] };
    invoke(&ix, &[from.clone()])?;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "builder_with_account",
			src: `fn pay(token_program: AccountInfo, src: AccountInfo, dst: AccountInfo, owner: AccountInfo) -> ProgramResult {
    let ix = spl_token::instruction::transfer(token_program.key, src.key, dst.key, owner.key, &[], 10)?;
    invoke(&ix, &[src, dst, owner])
}
`,
			want: 1,
		},
		{
			name: "instruction_parameter",
			src: `fn relay(ix: Instruction, from: AccountInfo, seeds: &[&[u8]]) -> ProgramResult {
    invoke_signed(&ix, &[from.clone()], &[seeds])
}
`,
			want: 0,
		},
		{
			name: "unbound_instruction",
			src: `fn relay(from: AccountInfo) -> ProgramResult {
    invoke(&IX, &[from.clone()])
}
`,
			want: 0,
		},
		{
			name: "next_account_info_program",
			src: `fn forward(accounts: &[AccountInfo]) -> ProgramResult {
    let iter = &mut accounts.iter();
    let program = next_account_info(iter)?;
    let ix = Instruction { program_id: *program.key, accounts: vec![], data: vec![] };
    invoke(&ix, &[program.clone()])
}
`,
			want: 1,
		},
		{
			name: "system_transfer",
			src: `fn pay(from: AccountInfo, to: AccountInfo) -> ProgramResult {
    invoke(&system_instruction::transfer(from.key, to.key, 10), &[from, to])
}
`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmArbitraryCPI{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestReinitialization(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "no_guard",
			src: `fn initialize(state_info: AccountInfo, authority: Pubkey) -> ProgramResult {
    let mut state = State::try_from_slice(&state_info.data.borrow())?;
    state.authority = authority;
    state.serialize(&mut &mut state_info.data.borrow_mut()[..])?;
    Ok(())
}
`,
			want: 1,
		},
		{
			name: "guarded",
			src: `fn initialize(state_info: AccountInfo, authority: Pubkey) -> ProgramResult {
    let mut state = State::try_from_slice(&state_info.data.borrow())?;
    if state.is_initialized {
        return Err(ProgramError::AccountAlreadyInitialized);
    }
    state.is_initialized = true;
    state.authority = authority;
    Ok(())
}
`,
			want: 0,
		},
		{
			name: "anchor_init_constraint",
			src: `pub fn initialize(ctx: Context<Initialize>) -> Result<()> {
    ctx.accounts.state.authority = ctx.accounts.user.key();
    Ok(())
}

#[derive(Accounts)]
pub struct Initialize<'info> {
    #[account(init, payer = user, space = 8 + 32)]
    pub state: Account<'info, State>,
    #[account(mut)]
    pub user: Signer<'info>,
}
`,
			want: 0,
		},
		{
			name: "anchor_init_if_needed",
			src: `pub fn initialize(ctx: Context<Initialize>) -> Result<()> {
    ctx.accounts.state.authority = ctx.accounts.user.key();
    Ok(())
}

#[derive(Accounts)]
pub struct Initialize<'info> {
    #[account(init_if_needed, payer = user, space = 8 + 32)]
    pub state: Account<'info, State>,
    #[account(mut)]
    pub user: Signer<'info>,
}
`,
			want: 1,
		},
		{
			name: "not_an_initializer",
			src: `fn update(state: &mut State, authority: Pubkey) {
    state.authority = authority;
}
`,
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (&svmReinitialization{}).Analyze(mustParse(t, tt.src))
			if len(got) != tt.want {
				t.Errorf("got %d findings, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestRulesAlwaysLocateFindings(t *testing.T) {
	src := `pub fn process_instruction(program_id: &Pubkey, accounts: &[AccountInfo], data: &[u8]) -> ProgramResult {
    let iter = &mut accounts.iter();
    let payer = next_account_info(iter)?;
    let program = next_account_info(iter)?;
    let clock = Clock::from_account_info(next_account_info(iter)?)?;
    let (pda, bump) = Pubkey::find_program_address(&[b"x"], program_id);
    let ix = Instruction { program_id: *program.key, accounts: vec![], data: data.to_vec() };
    **payer.lamports.borrow_mut() -= 10;
    invoke(&ix, &[payer.clone()])?;
    Ok(())
}
`
	vs, _ := Builtin().Run(mustParse(t, src))
	if len(vs) == 0 {
		t.Fatal("expected findings")
	}
	for _, v := range vs {
		if v.Location.Line < 1 || v.Location.Column < 1 || v.Location.File == "" {
			t.Errorf("%s has unset location %+v", v.RuleID, v.Location)
		}
	}
}
