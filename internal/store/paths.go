package store

import "context"

// Root folders.

func (q *Queries) CreateRootFolder(ctx context.Context, path, name string) (RootFolder, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO root_folders (path, name) VALUES (?, ?)`, path, name)
	if err != nil {
		return RootFolder{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return RootFolder{}, err
	}
	return q.GetRootFolder(ctx, id)
}

func (q *Queries) GetRootFolder(ctx context.Context, id int64) (RootFolder, error) {
	var f RootFolder
	err := q.db.QueryRowContext(ctx,
		`SELECT id, path, name, created_at FROM root_folders WHERE id = ?`, id).
		Scan(&f.ID, &f.Path, &f.Name, &f.CreatedAt)
	return f, err
}

func (q *Queries) ListRootFolders(ctx context.Context) ([]RootFolder, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, path, name, created_at FROM root_folders ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []RootFolder
	for rows.Next() {
		var f RootFolder
		if err := rows.Scan(&f.ID, &f.Path, &f.Name, &f.CreatedAt); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (q *Queries) DeleteRootFolder(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM root_folders WHERE id = ?`, id)
	return err
}

// Remote path mappings.

func (q *Queries) CreateRemotePathMapping(ctx context.Context, host, remotePath, localPath string) (RemotePathMapping, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO remote_path_mappings (host, remote_path, local_path) VALUES (?, ?, ?)`,
		host, remotePath, localPath)
	if err != nil {
		return RemotePathMapping{}, err
	}
	id, err := lastInsertID(res)
	if err != nil {
		return RemotePathMapping{}, err
	}

	var m RemotePathMapping
	err = q.db.QueryRowContext(ctx,
		`SELECT id, host, remote_path, local_path, created_at FROM remote_path_mappings WHERE id = ?`, id).
		Scan(&m.ID, &m.Host, &m.RemotePath, &m.LocalPath, &m.CreatedAt)
	return m, err
}

func (q *Queries) ListRemotePathMappings(ctx context.Context) ([]RemotePathMapping, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, host, remote_path, local_path, created_at FROM remote_path_mappings ORDER BY host, remote_path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mappings []RemotePathMapping
	for rows.Next() {
		var m RemotePathMapping
		if err := rows.Scan(&m.ID, &m.Host, &m.RemotePath, &m.LocalPath, &m.CreatedAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (q *Queries) DeleteRemotePathMapping(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM remote_path_mappings WHERE id = ?`, id)
	return err
}
